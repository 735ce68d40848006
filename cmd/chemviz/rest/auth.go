package rest

import (
	"context"
	"fmt"
	"net/http"

	apiauth "github.com/opst/chemviz/pkg/api/types/auth"
)

func (c *client) Login(ctx context.Context, username, password string) (apiauth.LoginResult, error) {
	return postCredentials[apiauth.LoginResult](ctx, c, "login", username, password)
}

func (c *client) Register(ctx context.Context, username, password string) (apiauth.RegisterResult, error) {
	return postCredentials[apiauth.RegisterResult](ctx, c, "register", username, password)
}

func postCredentials[T any](ctx context.Context, c *client, action string, username, password string) (T, error) {
	var zero T

	body, err := jsonBody(apiauth.Credentials{Username: username, Password: password})
	if err != nil {
		return zero, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.apipath("auth", action), body, "")
	if err != nil {
		return zero, err
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()

	result := new(T)
	if err := unmarshalJsonResponse(
		resp, result,
		MessageFor{
			Status4xx: fmt.Sprintf("%s is rejected by server (status code = %d)", action, resp.StatusCode),
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		return zero, err
	}
	return *result, nil
}
