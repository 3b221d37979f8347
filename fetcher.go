package flagcore

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAPI = "https://flagcore-api.example.com/v1"
	defaultCDN = "https://flagcore-cdn.example.com/v1"
)

const (
	maxRetries        = 5
	backoffMultiplier = 10
)

type apiHosts struct {
	downloadConfigSpecs string
	getIDLists          string
	logEvent            string
}

// fetcher is the sole HTTP boundary: spec download, ID-list sync, and event
// flushing all go through it, so retry/backoff/gzip/header logic lives in
// one place.
type fetcher struct {
	api      apiHosts
	sdkKey   string
	metadata clientMetadata
	client   *http.Client
	options  *Options
}

func newFetcher(sdkKey string, options *Options) *fetcher {
	hosts := apiHosts{
		downloadConfigSpecs: strings.TrimSuffix(defaultString(
			options.APIOverrides.DownloadConfigSpecs,
			defaultString(options.API, defaultCDN),
		), "/"),
		getIDLists: strings.TrimSuffix(defaultString(
			options.APIOverrides.GetIDLists,
			defaultString(options.API, defaultAPI),
		), "/"),
		logEvent: strings.TrimSuffix(defaultString(
			options.APIOverrides.LogEvent,
			defaultString(options.API, defaultAPI),
		), "/"),
	}
	return &fetcher{
		api:      hosts,
		metadata: newClientMetadata(),
		sdkKey:   sdkKey,
		client:   &http.Client{Timeout: 3 * time.Second},
		options:  options,
	}
}

// requestOptions tunes a single call's retry/backoff/extra headers.
type requestOptions struct {
	retries int
	backoff time.Duration
	header  map[string]string
}

func (o *requestOptions) fillDefaults() {
	if o.backoff == 0 {
		o.backoff = time.Second
	}
}

func (f *fetcher) downloadConfigSpecs(sinceTime int64, out interface{}) (*http.Response, error) {
	var endpoint string
	if f.options.DisableCDN {
		endpoint = fmt.Sprintf("/download_config_specs?sinceTime=%d", sinceTime)
	} else {
		endpoint = fmt.Sprintf("/download_config_specs/%s.json?sinceTime=%d", f.sdkKey, sinceTime)
	}
	return f.get(endpoint, out, requestOptions{retries: maxRetries})
}

func (f *fetcher) getIDListSources(out interface{}) (*http.Response, error) {
	return f.post("/get_id_lists", nil, out, requestOptions{retries: maxRetries})
}

// getIDList performs a plain (non-host-routed) range fetch against a list's
// own download URL, used for the resumable +/- line ingestion.
func (f *fetcher) getIDList(url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := f.client.Do(req)
	if err != nil {
		var statusCode int
		if res != nil {
			statusCode = res.StatusCode
		}
		return res, &TransportError{
			RequestMetadata: &RequestMetadata{StatusCode: statusCode, Endpoint: url},
			Err:             err,
		}
	}
	return res, nil
}

func (f *fetcher) logEvents(events []interface{}, out interface{}, opts requestOptions) (*http.Response, error) {
	input := logEventInput{Events: events, Metadata: f.metadata}
	if opts.header == nil {
		opts.header = make(map[string]string)
	}
	opts.header["flagcore-event-count"] = strconv.Itoa(len(events))
	return f.post("/log_event", input, out, opts)
}

func (f *fetcher) post(endpoint string, body, out interface{}, opts requestOptions) (*http.Response, error) {
	return f.doRequest("POST", endpoint, body, out, opts)
}

func (f *fetcher) get(endpoint string, out interface{}, opts requestOptions) (*http.Response, error) {
	return f.doRequest("GET", endpoint, nil, out, opts)
}

func (f *fetcher) buildRequest(method, endpoint string, body interface{}, header map[string]string) (*http.Request, error) {
	if f.options.LocalMode {
		return nil, nil
	}

	var bodyBuf io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyBuf = bytes.NewBuffer(bodyBytes)
		if strings.Contains(endpoint, "log_event") {
			var compressed bytes.Buffer
			gz := gzip.NewWriter(&compressed)
			_, _ = gz.Write(bodyBytes)
			gz.Close()
			bodyBuf = &compressed
		}
	} else if method == "POST" {
		bodyBuf = bytes.NewBufferString("{}")
	}

	req, err := http.NewRequest(method, f.buildURL(endpoint), bodyBuf)
	if err != nil {
		return nil, err
	}
	req.Header.Add("FLAGCORE-API-KEY", f.sdkKey)
	req.Header.Set("Content-Type", "application/json")
	if strings.Contains(endpoint, "log_event") {
		req.Header.Set("Content-Encoding", "gzip")
	}
	req.Header.Add("FLAGCORE-CLIENT-TIME", strconv.FormatInt(getUnixMilli(), 10))
	req.Header.Add("FLAGCORE-SESSION-ID", f.metadata.SessionID)
	req.Header.Add("FLAGCORE-SDK-TYPE", f.metadata.SDKType)
	req.Header.Add("FLAGCORE-SDK-VERSION", f.metadata.SDKVersion)
	req.Header.Add("FLAGCORE-SDK-LANGUAGE-VERSION", f.metadata.LanguageVersion)
	for k, v := range header {
		req.Header.Add(k, v)
	}
	return req, nil
}

func (f *fetcher) buildURL(endpoint string) string {
	switch {
	case strings.Contains(endpoint, "download_config_specs"):
		return f.api.downloadConfigSpecs + endpoint
	case strings.Contains(endpoint, "get_id_list"):
		return f.api.getIDLists + endpoint
	case strings.Contains(endpoint, "log_event"):
		return f.api.logEvent + endpoint
	default:
		return defaultString(f.options.API, defaultAPI) + endpoint
	}
}

func (f *fetcher) doRequest(method, endpoint string, in, out interface{}, opts requestOptions) (*http.Response, error) {
	request, err := f.buildRequest(method, endpoint, in, opts.header)
	if request == nil || err != nil {
		if err != nil {
			return nil, &TransportError{Err: err}
		}
		return nil, ErrLocalModeNetwork
	}
	opts.fillDefaults()
	response, err, attempts := retryRequest(opts.retries, opts.backoff, func() (*http.Response, bool, error) {
		resp, err := f.client.Do(request)
		if err != nil {
			return resp, resp != nil, err
		}
		defer func() {
			if resp.Body != nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
		}()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, false, f.parseResponse(resp, out)
		}
		return resp, retryableStatusCode(resp.StatusCode), fmt.Errorf(resp.Status)
	})

	if err != nil {
		if response == nil {
			return response, &TransportError{Err: err}
		}
		return response, &TransportError{
			RequestMetadata: &RequestMetadata{StatusCode: response.StatusCode, Endpoint: endpoint, Retries: attempts},
			Err:             err,
		}
	}
	return response, nil
}

func (f *fetcher) parseResponse(response *http.Response, out interface{}) error {
	if out == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(&out)
}

func retryRequest(retries int, backoff time.Duration, fn func() (*http.Response, bool, error)) (*http.Response, error, int) {
	attempts := 0
	for {
		response, shouldRetry, err := fn()
		if !shouldRetry {
			return response, err, attempts
		}
		if retries <= 0 {
			return response, err, attempts
		}
		retries--
		attempts++
		time.Sleep(backoff)
		backoff *= backoffMultiplier
	}
}

func retryableStatusCode(code int) bool {
	switch code {
	case 408, 500, 502, 503, 504, 522, 524, 599:
		return true
	default:
		return false
	}
}
