package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLambda struct {
	requestID string
	invoked   []lambda.InvokeInput
	config    *lambda.UpdateFunctionConfigurationInput
}

func (f *fakeLambda) Invoke(ctx context.Context, in *lambda.InvokeInput, opts ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	f.invoked = append(f.invoked, *in)
	out := &lambda.InvokeOutput{StatusCode: 202}
	if f.requestID != "" {
		awsmiddleware.SetRequestIDMetadata(&out.ResultMetadata, f.requestID)
	}
	return out, nil
}

func (f *fakeLambda) UpdateFunctionConfiguration(ctx context.Context, in *lambda.UpdateFunctionConfigurationInput, opts ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error) {
	f.config = in
	return &lambda.UpdateFunctionConfigurationOutput{}, nil
}

func TestLambdaExecutorSubmit(t *testing.T) {
	fake := &fakeLambda{requestID: "8f1c6a2e-req"}
	exec := NewLambdaExecutorWithAPI(fake, "serverless-demo", zap.NewNop())

	job := Job{
		ID:        "job-1",
		Input:     "s3://in/a",
		Output:    "s3://out/a",
		Variable:  "hus",
		Transform: "tpw",
		Year:      2016,
	}
	handle, err := exec.Submit(context.Background(), job)
	require.NoError(t, err)

	// The handle is the invocation request ID AWS assigned, not the
	// client-side job ID.
	assert.Equal(t, "8f1c6a2e-req", handle)

	require.Len(t, fake.invoked, 1)
	in := fake.invoked[0]
	assert.Equal(t, "serverless-demo", aws.ToString(in.FunctionName))
	assert.Equal(t, types.InvocationTypeEvent, in.InvocationType)

	var decoded Job
	require.NoError(t, json.Unmarshal(in.Payload, &decoded))
	assert.Equal(t, job, decoded)
}

func TestLambdaExecutorSubmitNoRequestID(t *testing.T) {
	fake := &fakeLambda{}
	exec := NewLambdaExecutorWithAPI(fake, "serverless-demo", zap.NewNop())

	handle, err := exec.Submit(context.Background(), Job{ID: "job-2", Year: 2017})
	require.NoError(t, err)
	assert.Equal(t, "job-2", handle)
}

func TestLambdaExecutorEnsureRuntime(t *testing.T) {
	fake := &fakeLambda{}
	exec := NewLambdaExecutorWithAPI(fake, "serverless-demo", zap.NewNop())

	require.NoError(t, exec.EnsureRuntime(context.Background(), 3000))
	require.NotNil(t, fake.config)
	assert.Equal(t, int32(3000), aws.ToInt32(fake.config.MemorySize))
	assert.Equal(t, int32(300), aws.ToInt32(fake.config.Timeout))
}
