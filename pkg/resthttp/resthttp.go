// Package resthttp holds the shared resty client outbound HTTP calls go
// through.
package resthttp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	runOnce     sync.Once
	restyClient *resty.Client
)

// Client shared resty client
func Client() *resty.Client {
	runOnce.Do(func() {
		restyClient = resty.New().
			SetHeader("Content-Type", "application/json").
			SetHeader("Charset", "utf-8").
			SetTimeout(10 * time.Second)
	})

	return restyClient
}

// Request new resty request bound to ctx
func Request(ctx context.Context) *resty.Request {
	return Client().R().SetContext(ctx)
}

// ParseResponse decodes the response body into obj, turning a non 2xx
// status into an error carrying the body.
func ParseResponse(r *resty.Response, obj interface{}) error {
	if !r.IsSuccess() {
		return errors.New(string(r.Body()))
	}

	if obj != nil {
		return json.Unmarshal(r.Body(), obj)
	}
	return nil
}
