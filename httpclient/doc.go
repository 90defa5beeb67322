// Package httpclient is the outbound HTTP client used for activity calls to the
// collaborator service and by the CLI to reach the operator API.
//
// A Client performs exactly one attempt per Do call; retrying is the caller's
// policy. Non-2xx responses come back as a *Response together with a classified
// *Error so callers can record the status code either way.
//
//	client, _ := httpclient.New(httpclient.Config{Headers: map[string]string{"User-Agent": "orchestrator"}})
//	resp, err := client.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: "https://collab/api/health"})
package httpclient
