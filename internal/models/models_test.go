package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPExchange_HasResponse(t *testing.T) {
	var nilExchange *HTTPExchange

	assert.False(t, nilExchange.HasResponse())
	assert.False(t, (&HTTPExchange{}).HasResponse())
	assert.False(t, (&HTTPExchange{Response: &ResponsePart{}}).HasResponse())
	assert.True(t, (&HTTPExchange{Response: &ResponsePart{Raw: []byte("HTTP/1.1 200 OK\r\n\r\n")}}).HasResponse())
}

func TestHTTPExchange_Summary(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	e := &HTTPExchange{
		ID:        "abc",
		Request:   RequestPart{Method: "GET", URL: "https://example.com/", Body: "ignored"},
		Response:  &ResponsePart{StatusCode: 404, Raw: []byte("0123456789")},
		Timestamp: ts,
	}

	s := e.Summary()
	assert.Equal(t, ExchangeSummary{
		ID: "abc", Method: "GET", URL: "https://example.com/", StatusCode: 404, ResponseSize: 10, Timestamp: ts,
	}, s)

	noResp := (&HTTPExchange{ID: "x"}).Summary()
	assert.Zero(t, noResp.StatusCode)
	assert.Zero(t, noResp.ResponseSize)
}

func TestAnalysisResult_Succeeded(t *testing.T) {
	assert.True(t, (&AnalysisResult{Text: "XSS in q"}).Succeeded())
	assert.False(t, (&AnalysisResult{}).Succeeded())
	assert.False(t, (&AnalysisResult{Text: "partial", Error: "boom"}).Succeeded())
}
