package destination

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastebase/recipe-migrate/internal/errors"
	"github.com/tastebase/recipe-migrate/internal/httpclient"
	"github.com/tastebase/recipe-migrate/internal/model"
)

const testBaseURL = "http://tastebase.test/api"

func newMockedClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	hc := httpclient.New(&httpclient.Config{Transport: mt})
	client := NewClient(Config{BaseURL: testBaseURL, AuthToken: "secret-token"}, hc)
	t.Cleanup(client.Close)
	return client, mt
}

func testUser() *model.TransformedUser {
	return &model.TransformedUser{
		LegacyID: 7,
		ID:       "0b9cdd06-3f1c-4f42-a393-e3c8b2f0f0aa",
		Email:    "alice@example.com",
		Username: "alice",
	}
}

func testRecipe() *model.TransformedRecipe {
	return &model.TransformedRecipe{
		LegacyID: 101,
		ID:       "4a1de2fa-2d19-4f1a-9a5a-0a4f3a2b1c0d",
		Title:    "Spaghetti Carbonara",
		AuthorID: "0b9cdd06-3f1c-4f42-a393-e3c8b2f0f0aa",
		Ingredients: []model.Ingredient{
			{Position: 1, Quantity: 400, Unit: "g", Name: "spaghetti"},
		},
		Instructions: []model.Instruction{
			{Position: 1, Text: "Boil the pasta."},
		},
	}
}

func TestCreateUser_Success(t *testing.T) {
	client, mt := newMockedClient(t)

	var gotAuth string
	mt.RegisterResponder(http.MethodPost, testBaseURL+"/migration/users",
		func(req *http.Request) (*http.Response, error) {
			gotAuth = req.Header.Get("Authorization")
			return httpmock.NewJsonResponse(http.StatusCreated, map[string]any{
				"id":      "0b9cdd06-3f1c-4f42-a393-e3c8b2f0f0aa",
				"existed": false,
			})
		})

	resp, err := client.CreateUser(context.Background(), testUser())

	require.NoError(t, err, "expected user creation to succeed")
	assert.Equal(t, "0b9cdd06-3f1c-4f42-a393-e3c8b2f0f0aa", resp.ID, "expected echoed id")
	assert.False(t, resp.Existed, "expected fresh user")
	assert.Equal(t, "Bearer secret-token", gotAuth, "expected bearer token header")
}

func TestCreateUser_ExistingEmail(t *testing.T) {
	client, mt := newMockedClient(t)

	mt.RegisterResponder(http.MethodPost, testBaseURL+"/migration/users",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
			"id":      "11111111-2222-3333-4444-555555555555",
			"existed": true,
		}))

	resp, err := client.CreateUser(context.Background(), testUser())

	require.NoError(t, err, "existing email is still a success")
	assert.True(t, resp.Existed, "expected existed flag")
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", resp.ID, "expected destination's effective id")
}

func TestCreateRecipe_Success(t *testing.T) {
	client, mt := newMockedClient(t)

	mt.RegisterResponder(http.MethodPost, testBaseURL+"/migration/recipes",
		httpmock.NewJsonResponderOrPanic(http.StatusCreated, map[string]any{
			"id": "4a1de2fa-2d19-4f1a-9a5a-0a4f3a2b1c0d",
		}))

	resp, err := client.CreateRecipe(context.Background(), testRecipe())

	require.NoError(t, err, "expected recipe creation to succeed")
	assert.Equal(t, "4a1de2fa-2d19-4f1a-9a5a-0a4f3a2b1c0d", resp.ID, "expected echoed id")
}

func TestCreateRecipe_ClientErrorIsValidation(t *testing.T) {
	client, mt := newMockedClient(t)

	mt.RegisterResponder(http.MethodPost, testBaseURL+"/migration/recipes",
		httpmock.NewStringResponder(http.StatusUnprocessableEntity, `{"error":"title required"}`))

	_, err := client.CreateRecipe(context.Background(), testRecipe())

	require.Error(t, err, "expected error for 422")
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation), "4xx must classify as validation")
	assert.False(t, errors.IsRetryable(err), "4xx must be terminal")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError in chain")
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode, "expected status preserved")
	assert.Contains(t, apiErr.Body, "title required", "expected body preserved")
}

func TestCreateRecipe_ServerErrorIsRetryable(t *testing.T) {
	client, mt := newMockedClient(t)

	mt.RegisterResponder(http.MethodPost, testBaseURL+"/migration/recipes",
		httpmock.NewStringResponder(http.StatusBadGateway, "upstream down"))

	_, err := client.CreateRecipe(context.Background(), testRecipe())

	require.Error(t, err, "expected error for 502")
	assert.True(t, errors.IsCategory(err, errors.CategoryServer), "5xx must classify as server")
	assert.True(t, errors.IsRetryable(err), "5xx must be retryable")
}

func TestCreateRecipe_TransportErrorIsNetwork(t *testing.T) {
	client, mt := newMockedClient(t)

	mt.RegisterResponder(http.MethodPost, testBaseURL+"/migration/recipes",
		httpmock.NewErrorResponder(errors.NewStd("connection refused")))

	_, err := client.CreateRecipe(context.Background(), testRecipe())

	require.Error(t, err, "expected transport error")
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork), "transport failure must classify as network")
	assert.True(t, errors.IsRetryable(err), "transport failure must be retryable")
}
