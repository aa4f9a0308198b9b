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

// Package version implements the ordered schema-version-label algebra used
// by the schema lifecycle manager to decide between patching and migrating
// the XlineCluster CustomResourceDefinition.
package version

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// Channel is the pre-release channel of a Label.
type Channel int

const (
	// ChannelAlpha orders before Beta and Stable.
	ChannelAlpha Channel = iota
	// ChannelBeta orders after Alpha and before Stable.
	ChannelBeta
	// ChannelStable orders last.
	ChannelStable
)

var labelRE = regexp.MustCompile(`^v(\d+)(alpha|beta)?(\d+)?$`)

// Label is the ordered triple (main, channel, sub) described in §3 of the
// specification. The zero value is not a valid label; use Parse.
type Label struct {
	Main    int
	Channel Channel
	Sub     int

	// subExplicit tracks whether the sub-revision was spelled out in the
	// parsed text ("v1alpha1" vs "v1alpha"), so String can round-trip both.
	subExplicit bool
}

// Parse parses a string of the form "vN", "vNalpha[M]" or "vNbeta[M]" into a
// Label. A channel with no explicit sub-revision (e.g. "v1alpha") defaults
// to sub 0, ordering immediately before "v1alpha1".
func Parse(s string) (Label, error) {
	m := labelRE.FindStringSubmatch(s)
	if m == nil {
		return Label{}, errors.Errorf("invalid version label %q", s)
	}
	main, err := strconv.Atoi(m[1])
	if err != nil {
		return Label{}, errors.Wrapf(err, "parsing main version of %q", s)
	}

	var (
		channel = ChannelStable
		sub     int
	)
	switch m[2] {
	case "alpha":
		channel = ChannelAlpha
	case "beta":
		channel = ChannelBeta
	case "":
		if m[3] != "" {
			return Label{}, errors.Errorf("invalid version label %q: sub-revision without channel", s)
		}
	}
	if m[3] != "" {
		sub, err = strconv.Atoi(m[3])
		if err != nil {
			return Label{}, errors.Wrapf(err, "parsing sub-revision of %q", s)
		}
	}

	return Label{Main: main, Channel: channel, Sub: sub, subExplicit: m[3] != ""}, nil
}

// MustParse is Parse but panics on error; it exists for use with literal,
// compile-time-known version labels (e.g. in CRD manifests).
func MustParse(s string) Label {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

func channelName(c Channel) string {
	switch c {
	case ChannelAlpha:
		return "alpha"
	case ChannelBeta:
		return "beta"
	default:
		return "stable"
	}
}

// String renders the canonical textual form. For all valid labels,
// Parse(l.String()) == l.
func (l Label) String() string {
	name := ""
	switch l.Channel {
	case ChannelAlpha:
		name = "alpha"
	case ChannelBeta:
		name = "beta"
	default:
		return fmt.Sprintf("v%d", l.Main)
	}
	if !l.subExplicit && l.Sub == 0 {
		return fmt.Sprintf("v%d%s", l.Main, name)
	}
	return fmt.Sprintf("v%d%s%d", l.Main, name, l.Sub)
}

// Compare returns -1, 0, or 1 as l orders before, equal to, or after other,
// by main version, then channel, then sub-revision.
func (l Label) Compare(other Label) int {
	if l.Main != other.Main {
		return cmpInt(l.Main, other.Main)
	}
	if l.Channel != other.Channel {
		return cmpInt(int(l.Channel), int(other.Channel))
	}
	return cmpInt(l.Sub, other.Sub)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Less reports whether l orders strictly before other.
func (l Label) Less(other Label) bool { return l.Compare(other) < 0 }

// CompatWith reports whether l and other are compatible, i.e. share the same
// main version. Channel and sub-revision are irrelevant to compatibility.
func (l Label) CompatWith(other Label) bool {
	return l.Main == other.Main
}

// Max returns the greatest of labels by Compare, or the zero Label if labels
// is empty.
func Max(labels []Label) Label {
	var max Label
	for i, l := range labels {
		if i == 0 || max.Less(l) {
			max = l
		}
	}
	return max
}

// GreaterOrEqualToAll reports whether l orders at or after every label in
// others.
func GreaterOrEqualToAll(l Label, others []Label) bool {
	for _, o := range others {
		if l.Less(o) {
			return false
		}
	}
	return true
}
