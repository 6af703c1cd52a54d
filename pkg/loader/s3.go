package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	lmerrors "github.com/vango-dev/livemodel/internal/errors"
	"github.com/vango-dev/livemodel/pkg/task"
)

// ObjectGetter is the part of *s3.Client the loader needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 returns a loader that reads objects from bucket.
//
// Example usage:
//
//	client := s3.New(s3.Options{Region: "eu-west-1", Credentials: creds})
//	profile := task.New[map[string]any](loader.S3(client, "my-bucket"), task.WithParams("profile.json"))
//
// Missing objects fail with ErrNotFound. The request is aborted when the
// load is cancelled.
func S3(client ObjectGetter, bucket string, opts ...Option) task.Loader {
	o := newOptions(opts)
	return func(ctx context.Context, params ...any) (any, error) {
		key, err := o.key(params)
		if err != nil {
			return nil, err
		}

		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var missing *types.NoSuchKey
			if errors.As(err, &missing) {
				return nil, ErrNotFound.(*lmerrors.Error).WithDetailf("s3://%s/%s", bucket, key)
			}
			return nil, fmt.Errorf("s3 get s3://%s/%s: %w", bucket, key, err)
		}
		defer out.Body.Close()

		if o.maxSize > 0 && aws.ToInt64(out.ContentLength) > o.maxSize {
			return nil, tooLarge(key, o.maxSize)
		}
		return o.decode(key, out.Body)
	}
}
