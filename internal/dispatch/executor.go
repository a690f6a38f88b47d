package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"go.uber.org/zap"
)

// Job is the unit of serverless work: compute one 366-day year of the
// transformed dataset and write it into its region of the output store.
type Job struct {
	ID        string `json:"id"`
	Input     string `json:"input"`
	Output    string `json:"output"`
	Variable  string `json:"variable"`
	Transform string `json:"transform"`
	Year      int    `json:"year"`
}

// Executor submits year jobs without waiting for them to finish. Submit
// returns a handle the tracking store records; completion is only ever
// established by a later verification pass over the output store.
type Executor interface {
	Name() string
	Submit(ctx context.Context, job Job) (handle string, err error)
}

// lambdaAPI is the client subset LambdaExecutor needs.
type lambdaAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, opts ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
	UpdateFunctionConfiguration(ctx context.Context, in *lambda.UpdateFunctionConfigurationInput, opts ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error)
}

// LambdaExecutor fires each job at an AWS Lambda function as an async
// (Event) invocation.
type LambdaExecutor struct {
	api      lambdaAPI
	function string
	log      *zap.Logger
}

// NewLambdaExecutor builds an executor for the named function using the
// ambient AWS credentials.
func NewLambdaExecutor(ctx context.Context, function string, log *zap.Logger) (*LambdaExecutor, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &LambdaExecutor{api: lambda.NewFromConfig(cfg), function: function, log: log}, nil
}

// NewLambdaExecutorWithAPI wires a caller-supplied client, used by tests.
func NewLambdaExecutorWithAPI(api lambdaAPI, function string, log *zap.Logger) *LambdaExecutor {
	return &LambdaExecutor{api: api, function: function, log: log}
}

func (e *LambdaExecutor) Name() string { return "lambda" }

// EnsureRuntime sizes the function for year-sized work before a batch:
// the requested memory and a five minute timeout.
func (e *LambdaExecutor) EnsureRuntime(ctx context.Context, memoryMB int32) error {
	_, err := e.api.UpdateFunctionConfiguration(ctx, &lambda.UpdateFunctionConfigurationInput{
		FunctionName: aws.String(e.function),
		MemorySize:   aws.Int32(memoryMB),
		Timeout:      aws.Int32(300),
	})
	if err != nil {
		return fmt.Errorf("failed to configure function %q: %w", e.function, err)
	}
	e.log.Info("configured worker function",
		zap.String("function", e.function),
		zap.Int32("memory_mb", memoryMB))
	return nil
}

func (e *LambdaExecutor) Submit(ctx context.Context, job Job) (string, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}
	out, err := e.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(e.function),
		InvocationType: types.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke %q for year %d: %w", e.function, job.Year, err)
	}
	// The invocation request ID is the handle AWS knows the async call
	// by; fall back to the job's own ID if the response lacks one.
	if id, ok := awsmiddleware.GetRequestIDMetadata(out.ResultMetadata); ok && id != "" {
		return id, nil
	}
	return job.ID, nil
}

// LocalExecutor runs each job in-process on a goroutine. It exists for
// --local runs and tests; Wait joins all jobs and reports their errors.
type LocalExecutor struct {
	Stores StoreFactory
	Log    *zap.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	errs   []error
	failed []string
}

func (e *LocalExecutor) Name() string { return "local" }

func (e *LocalExecutor) Submit(ctx context.Context, job Job) (string, error) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := Process(ctx, e.Stores, job, e.Log); err != nil {
			e.mu.Lock()
			e.errs = append(e.errs, fmt.Errorf("job %s (year %d): %w", job.ID, job.Year, err))
			e.failed = append(e.failed, job.ID)
			e.mu.Unlock()
		}
	}()
	return job.ID, nil
}

// Wait blocks until every submitted job has finished.
func (e *LocalExecutor) Wait() error {
	e.wg.Wait()
	e.mu.Lock()
	defer e.mu.Unlock()
	return errors.Join(e.errs...)
}

// Failed lists the handles of jobs that returned an error. Only valid
// after Wait.
func (e *LocalExecutor) Failed() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.failed...)
}
