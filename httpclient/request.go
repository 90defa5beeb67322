package httpclient

// Header is one request header. Order is preserved when headers are applied.
type Header struct {
	Name  string
	Value string
}

// Request describes an outbound HTTP request.
type Request struct {
	// Method defaults to GET.
	Method string
	// URL is absolute, or relative to the client's BaseURL.
	URL string
	// Headers are applied after the client defaults, in order.
	Headers []Header
	// Query values are merged into the URL's query string.
	Query map[string]string
	// Body accepts []byte, string, or any value that will be JSON-encoded.
	Body any
}

// Response is the result of an HTTP request.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
