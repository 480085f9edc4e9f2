package capture

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
)

// burpTimeLayout - формат поля <time> в экспорте "Save items"
const burpTimeLayout = "Mon Jan 02 15:04:05 MST 2006"

type burpItems struct {
	XMLName xml.Name   `xml:"items"`
	Items   []burpItem `xml:"item"`
}

type burpItem struct {
	Time     string       `xml:"time"`
	URL      string       `xml:"url"`
	Protocol string       `xml:"protocol"`
	Method   string       `xml:"method"`
	Status   int          `xml:"status"`
	Request  burpEncoded `xml:"request"`
	Response burpEncoded `xml:"response"`
}

type burpEncoded struct {
	Base64 bool   `xml:"base64,attr"`
	Value  string `xml:",chardata"`
}

func (b burpEncoded) decode() ([]byte, error) {
	if !b.Base64 {
		return []byte(b.Value), nil
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(b.Value))
}

// parseBurpXML разбирает экспорт Burp Suite (Proxy history → Save items)
func parseBurpXML(data []byte) ([]*models.HTTPExchange, error) {
	var items burpItems

	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	if err := decoder.Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding burp xml: %w", err)
	}

	exchanges := make([]*models.HTTPExchange, 0, len(items.Items))
	for i, item := range items.Items {
		rawReq, err := item.Request.decode()
		if err != nil {
			return nil, fmt.Errorf("item %d: decoding request: %w", i, err)
		}
		rawResp, err := item.Response.decode()
		if err != nil {
			return nil, fmt.Errorf("item %d: decoding response: %w", i, err)
		}

		url := strings.TrimSpace(item.URL)
		if url == "" && len(rawReq) > 0 {
			if u, err := URLFromRequest(rawReq, item.Protocol); err == nil {
				url = u
			}
		}

		req := models.RequestPart{
			Method: strings.TrimSpace(item.Method),
			URL:    url,
			Body:   string(ExtractBody(rawReq)),
		}

		var resp *models.ResponsePart
		if len(rawResp) > 0 {
			resp = &models.ResponsePart{StatusCode: item.Status, Raw: rawResp}
			if status, headers, err := ParseResponse(rawResp); err == nil {
				resp.StatusCode = status
				resp.Headers = headers
			}
		}

		ts, err := time.Parse(burpTimeLayout, strings.TrimSpace(item.Time))
		if err != nil {
			ts = time.Now()
		}

		exchanges = append(exchanges, newExchange(req, resp, ts))
	}

	return exchanges, nil
}
