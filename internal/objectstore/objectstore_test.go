package objectstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"cmip6-pipeline/internal/zarr"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeS3 implements the API subset over an in-memory key set, including
// delimiter/common-prefix listing semantics.
type fakeS3 struct {
	objects map[string][]byte
}

func newFakeS3(keys ...string) *fakeS3 {
	f := &fakeS3{objects: make(map[string][]byte)}
	for _, k := range keys {
		f.objects[k] = []byte("x")
	}
	return f
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	delimiter := aws.ToString(in.Delimiter)

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	seen := make(map[string]bool)
	for _, k := range keys {
		if delimiter == "" {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
			continue
		}
		rest := k[len(prefix):]
		if i := strings.Index(rest, delimiter); i >= 0 {
			cp := prefix + rest[:i+1]
			if !seen[cp] {
				seen[cp] = true
				out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
			}
		} else {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func testClient(keys ...string) *Client {
	return NewWithAPI(newFakeS3(keys...), "cmip6-pds", zap.NewNop())
}

func TestConfigValidate(t *testing.T) {
	valid := Config{Region: "us-west-2", Bucket: "cmip6-pds"}
	require.NoError(t, valid.Validate())

	assert.Error(t, Config{Bucket: "b"}.Validate())
	assert.Error(t, Config{Region: "us-west-2"}.Validate())
	assert.Error(t, Config{Region: "us-west-2", Bucket: "a/b"}.Validate())
}

func TestGlob(t *testing.T) {
	c := testClient(
		"CMIP6/ScenarioMIP/NCC/NorESM2-MM/ssp245/r1i1p1f1/Amon/tasmax/gn/v1/.zattrs",
		"CMIP6/ScenarioMIP/NOAA-GFDL/GFDL-ESM4/ssp245/r1i1p1f1/Amon/tasmax/gr1/v1/.zattrs",
		"CMIP6/ScenarioMIP/NOAA-GFDL/GFDL-ESM4/ssp585/r1i1p1f1/Amon/tasmax/gr1/v1/.zattrs",
		"CMIP6/CMIP/NCC/NorESM2-MM/historical/r1i1p1f1/Amon/tasmax/gn/v1/.zattrs",
	)

	matches, err := c.Glob(context.Background(), "CMIP6/*/*/*/ssp245/*/Amon/tasmax/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CMIP6/ScenarioMIP/NCC/NorESM2-MM/ssp245/r1i1p1f1/Amon/tasmax/",
		"CMIP6/ScenarioMIP/NOAA-GFDL/GFDL-ESM4/ssp245/r1i1p1f1/Amon/tasmax/",
	}, matches)

	matches, err = c.Glob(context.Background(), "CMIP6/*/*/*/ssp126/*/Amon/tasmax/")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestGlobRejectsPartialWildcard(t *testing.T) {
	_, err := testClient().Glob(context.Background(), "CMIP6/Scenario*/x/")
	assert.ErrorContains(t, err, "whole-segment wildcards")
}

func TestResolveDeepest(t *testing.T) {
	c := testClient(
		"CMIP6/ScenarioMIP/NCC/NorESM2-MM/ssp245/r1i1p1f1/day/hus/gn/v20191108/.zattrs",
		"CMIP6/ScenarioMIP/NCC/NorESM2-MM/ssp245/r1i1p1f1/day/hus/gn/v20200218/.zattrs",
	)

	resolved, err := c.ResolveDeepest(context.Background(), "CMIP6/ScenarioMIP/NCC/NorESM2-MM/ssp245/r1i1p1f1/day/hus", 2)
	require.NoError(t, err)
	assert.Equal(t, "CMIP6/ScenarioMIP/NCC/NorESM2-MM/ssp245/r1i1p1f1/day/hus/gn/v20200218/", resolved)

	_, err = c.ResolveDeepest(context.Background(), "CMIP6/nope", 2)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestZarrStoreAdapter(t *testing.T) {
	ctx := context.Background()
	c := testClient()
	store := c.ZarrStore("out/CMIP6_x_tpw")

	require.NoError(t, store.Put(ctx, "tpw/.zarray", []byte("{}")))

	data, err := store.Get(ctx, "tpw/.zarray")
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), data)

	keys, err := store.List(ctx, "tpw/")
	require.NoError(t, err)
	assert.Equal(t, []string{"tpw/.zarray"}, keys)

	_, err = store.Get(ctx, "tpw/0.0")
	assert.ErrorIs(t, err, zarr.ErrKeyNotFound)

	require.NoError(t, store.Delete(ctx, "tpw/.zarray"))
	_, err = store.Get(ctx, "tpw/.zarray")
	assert.ErrorIs(t, err, zarr.ErrKeyNotFound)
}
