// Copyright 2024 The xline-operator Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []string{"v1", "v1alpha", "v1alpha1", "v1beta", "v1beta1", "v2alpha", "v2", "v10beta3"} {
		l, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, l.String())
	}
}

func TestParseRejects(t *testing.T) {
	for _, s := range []string{"", "1", "vAlpha", "v1gamma1", "v1alpha-1", "v-1"} {
		_, err := Parse(s)
		assert.Error(t, err, s)
	}
}

func TestOrdering(t *testing.T) {
	order := []string{"v1alpha", "v1alpha1", "v1beta", "v1beta1", "v1", "v2alpha", "v2"}
	var labels []Label
	for _, s := range order {
		labels = append(labels, MustParse(s))
	}
	for i := 1; i < len(labels); i++ {
		assert.Truef(t, labels[i-1].Less(labels[i]), "%s should order before %s", order[i-1], order[i])
	}
}

func TestCompatWith(t *testing.T) {
	v1 := MustParse("v1")
	v1alpha1 := MustParse("v1alpha1")
	v2 := MustParse("v2")

	assert.True(t, v1.CompatWith(v1alpha1))
	assert.False(t, v1.CompatWith(v2))
}

func TestMaxAndGreaterOrEqualToAll(t *testing.T) {
	labels := []Label{MustParse("v1"), MustParse("v2alpha"), MustParse("v1beta1")}
	assert.Equal(t, MustParse("v2alpha"), Max(labels))

	assert.True(t, GreaterOrEqualToAll(MustParse("v2alpha"), labels))
	assert.False(t, GreaterOrEqualToAll(MustParse("v1"), labels))
}
