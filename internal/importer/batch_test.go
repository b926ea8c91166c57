package importer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastebase/recipe-migrate/internal/destination"
	"github.com/tastebase/recipe-migrate/internal/errors"
	"github.com/tastebase/recipe-migrate/internal/model"
)

// fakeClient is a scriptable Submitter.
type fakeClient struct {
	userCalls   int
	recipeCalls int
	userFn      func(*model.TransformedUser) (*destination.UserResponse, error)
	recipeFn    func(*model.TransformedRecipe) (*destination.RecipeResponse, error)
}

func (f *fakeClient) CreateUser(_ context.Context, u *model.TransformedUser) (*destination.UserResponse, error) {
	f.userCalls++
	if f.userFn != nil {
		return f.userFn(u)
	}
	return &destination.UserResponse{ID: u.ID}, nil
}

func (f *fakeClient) CreateRecipe(_ context.Context, r *model.TransformedRecipe) (*destination.RecipeResponse, error) {
	f.recipeCalls++
	if f.recipeFn != nil {
		return f.recipeFn(r)
	}
	return &destination.RecipeResponse{ID: r.ID}, nil
}

func makeRecipes(n int) []model.Record {
	records := make([]model.Record, n)
	for i := 0; i < n; i++ {
		records[i] = &model.TransformedRecipe{
			LegacyID: int64(i + 1),
			ID:       model.NewDestinationID(),
			Title:    fmt.Sprintf("Recipe %d", i+1),
			AuthorID: model.NewDestinationID(),
			Ingredients: []model.Ingredient{
				{Position: 1, Quantity: 1, Unit: "cup", Name: "flour"},
			},
			Instructions: []model.Instruction{
				{Position: 1, Text: "Mix everything thoroughly."},
			},
		}
	}
	return records
}

func TestPartition(t *testing.T) {
	t.Run("137 items at size 50 gives 50/50/37", func(t *testing.T) {
		batches := Partition(makeRecipes(137), 50)

		require.Len(t, batches, 3, "expected exactly three batches")
		assert.Len(t, batches[0], 50, "expected first batch of 50")
		assert.Len(t, batches[1], 50, "expected second batch of 50")
		assert.Len(t, batches[2], 37, "expected final batch of 37")

		// Order preserved within and across batches.
		var want int64 = 1
		for _, batch := range batches {
			for _, rec := range batch {
				assert.Equal(t, want, rec.GetLegacyID(), "expected original order")
				want++
			}
		}
	})

	t.Run("empty input gives no batches", func(t *testing.T) {
		assert.Nil(t, Partition(nil, 50), "expected nil for empty input")
	})

	t.Run("exact multiple has no remainder batch", func(t *testing.T) {
		batches := Partition(makeRecipes(100), 50)
		require.Len(t, batches, 2, "expected two full batches")
		assert.Len(t, batches[1], 50, "expected full final batch")
	})
}

func TestImport_AllSucceed(t *testing.T) {
	client := &fakeClient{}
	bi := NewBatchImporter(client, BatchConfig{BatchSize: 10})

	records := makeRecipes(25)
	var batchCalls []int
	results, err := bi.Import(context.Background(), records, func(batch, total int, _ []model.ImportResult) {
		batchCalls = append(batchCalls, batch)
		assert.Equal(t, 3, total, "expected three batches")
	})

	require.NoError(t, err, "import failed")
	require.Len(t, results, 25, "expected one result per record")
	assert.Equal(t, 25, client.recipeCalls, "expected one call per record")
	assert.Equal(t, []int{1, 2, 3}, batchCalls, "expected the callback after every batch")
	for i, res := range results {
		assert.True(t, res.Success, "record %d failed", i)
		assert.Equal(t, records[i].GetLegacyID(), res.LegacyID, "results must preserve order")
	}
}

func TestImport_FailureIsolated(t *testing.T) {
	client := &fakeClient{
		recipeFn: func(r *model.TransformedRecipe) (*destination.RecipeResponse, error) {
			if r.LegacyID == 2 {
				return nil, errors.New(&destination.APIError{StatusCode: 422, Body: "bad"}).
					Category(errors.CategoryValidation).Build()
			}
			return &destination.RecipeResponse{ID: r.ID}, nil
		},
	}
	bi := NewBatchImporter(client, BatchConfig{BatchSize: 10})

	results, err := bi.Import(context.Background(), makeRecipes(3), nil)

	require.NoError(t, err, "one failing record must not abort the run")
	require.Len(t, results, 3, "expected all records attempted")
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success, "expected record 2 to fail")
	assert.Equal(t, model.ErrorKindValidation, results[1].ErrorKind, "expected validation kind")
	assert.True(t, results[2].Success, "records after a failure must still run")
}

func TestImport_StopOnError(t *testing.T) {
	client := &fakeClient{
		recipeFn: func(r *model.TransformedRecipe) (*destination.RecipeResponse, error) {
			if r.LegacyID == 12 {
				return nil, errors.New(&destination.APIError{StatusCode: 400, Body: "bad"}).
					Category(errors.CategoryValidation).Build()
			}
			return &destination.RecipeResponse{ID: r.ID}, nil
		},
	}
	bi := NewBatchImporter(client, BatchConfig{BatchSize: 10, StopOnError: true})

	results, err := bi.Import(context.Background(), makeRecipes(30), nil)

	require.NoError(t, err)
	// The failing batch (records 11-20) completes, batch three never runs.
	assert.Len(t, results, 20, "expected the failing batch to finish and the rest to be abandoned")
	assert.Equal(t, 20, client.recipeCalls, "third batch must not be attempted")
}

func TestImport_DryRun(t *testing.T) {
	client := &fakeClient{}
	bi := NewBatchImporter(client, BatchConfig{BatchSize: 10, DryRun: true})

	records := makeRecipes(3)
	bad := records[1].(*model.TransformedRecipe)
	bad.Title = ""

	results, err := bi.Import(context.Background(), records, nil)

	require.NoError(t, err)
	assert.Zero(t, client.recipeCalls, "dry run must not call the destination")
	assert.True(t, results[0].Success)
	assert.Equal(t, records[0].GetID(), results[0].NewID, "dry run must use the pre-generated id")
	assert.False(t, results[1].Success, "structurally invalid record must fail the dry run")
	assert.Equal(t, model.ErrorKindValidation, results[1].ErrorKind)
}

func TestImport_RetriesServerErrors(t *testing.T) {
	failures := 2
	client := &fakeClient{
		recipeFn: func(r *model.TransformedRecipe) (*destination.RecipeResponse, error) {
			if failures > 0 {
				failures--
				return nil, errors.New(&destination.APIError{StatusCode: 500, Body: "oops"}).
					Category(errors.CategoryServer).Build()
			}
			return &destination.RecipeResponse{ID: r.ID}, nil
		},
	}
	bi := NewBatchImporter(client, BatchConfig{BatchSize: 10, MaxRetries: 3, RetryBackoff: time.Millisecond})

	results, err := bi.Import(context.Background(), makeRecipes(1), nil)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success, "expected success after retries")
	assert.Equal(t, 2, results[0].RetryCount, "expected two retries recorded")
	assert.Equal(t, 3, client.recipeCalls, "expected three attempts")
}

func TestImport_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeClient{
		recipeFn: func(r *model.TransformedRecipe) (*destination.RecipeResponse, error) {
			if r.LegacyID == 2 {
				cancel()
			}
			return &destination.RecipeResponse{ID: r.ID}, nil
		},
	}
	bi := NewBatchImporter(client, BatchConfig{BatchSize: 10})

	results, err := bi.Import(ctx, makeRecipes(10), nil)

	require.Error(t, err, "expected cancellation to surface")
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation), "expected cancellation category")
	assert.Len(t, results, 2, "expected the stop to take effect within one item")
}

func TestImport_NoDelayAfterFinalBatch(t *testing.T) {
	client := &fakeClient{}
	bi := NewBatchImporter(client, BatchConfig{BatchSize: 10, BatchDelay: 5 * time.Second})

	start := time.Now()
	_, err := bi.Import(context.Background(), makeRecipes(5), nil)

	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "single batch must not pay the inter-batch delay")
}
