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

package backup

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// s3API is the subset of *s3.Client the provider exercises, narrowed for
// testability the way the teacher narrows its Kubernetes clients to
// interfaces in pkg/operator.
type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Provider stores snapshots as objects in a single S3 bucket, keyed by
// their canonical filename. It satisfies the optional blob-store variant
// named in the backup provider design.
type S3Provider struct {
	client s3API
	bucket string
	cache  string // local directory Load copies objects into before returning a path
}

// NewS3Provider returns a Provider backed by bucket, using cacheDir as scratch
// space for Load (the managed-service client expects a local path).
func NewS3Provider(client *s3.Client, bucket, cacheDir string) *S3Provider {
	return &S3Provider{client: client, bucket: bucket, cache: cacheDir}
}

// Latest implements Provider.
func (p *S3Provider) Latest(ctx context.Context) (Metadata, bool, error) {
	out, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(p.bucket)})
	if err != nil {
		return Metadata{}, false, storeUnavailable(err, "listing bucket %s", p.bucket)
	}

	var (
		best  Metadata
		found bool
	)
	for _, obj := range out.Contents {
		m, err := ParseName(aws.ToString(obj.Key))
		if err != nil {
			continue
		}
		if !found || m.Revision > best.Revision {
			best, found = m, true
		}
	}
	return best, found, nil
}

// Save implements Provider.
func (p *S3Provider) Save(ctx context.Context, meta Metadata, r io.Reader) error {
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(CanonicalName(meta)),
		Body:   r,
	})
	if err != nil {
		return storeUnavailable(err, "putting object for %v", meta)
	}
	return nil
}

// Load implements Provider.
func (p *S3Provider) Load(ctx context.Context, meta Metadata) (string, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(CanonicalName(meta)),
	})
	if err != nil {
		return "", storeUnavailable(err, "getting object for %v", meta)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(p.cache, 0o755); err != nil {
		return "", storeUnavailable(err, "creating cache dir %s", p.cache)
	}
	dst := filepath.Join(p.cache, CanonicalName(meta))
	f, err := os.Create(dst)
	if err != nil {
		return "", storeUnavailable(err, "creating cache file %s", dst)
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return "", storeUnavailable(err, "copying object for %v into cache", meta)
	}
	return dst, nil
}

// Purge implements Provider.
func (p *S3Provider) Purge(ctx context.Context, ttl time.Duration) error {
	out, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(p.bucket)})
	if err != nil {
		return storeUnavailable(err, "listing bucket %s", p.bucket)
	}
	cutoff := time.Now().Add(-ttl)

	var errs []error
	for _, obj := range out.Contents {
		if _, err := ParseName(aws.ToString(obj.Key)); err != nil {
			continue
		}
		if obj.LastModified != nil && obj.LastModified.Before(cutoff) {
			if _, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(p.bucket),
				Key:    obj.Key,
			}); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return storeUnavailable(errors.Errorf("%d errors, first: %v", len(errs), errs[0]), "purging bucket %s", p.bucket)
	}
	return nil
}
