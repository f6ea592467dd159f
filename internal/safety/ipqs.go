package safety

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// compile-time check that *IPQSClient implements Checker
var _ Checker = (*IPQSClient)(nil)

// defaultBaseURL is the IPQualityScore malicious-URL scanner endpoint.
// The full request URL is {base}/{apiKey}/{url-encoded candidate}.
const defaultBaseURL = "https://ipqualityscore.com/api/json/url"

// unsafeRiskScore is the risk score (0-100) at or above which a URL is
// reported as unsafe even when no explicit phishing/malware flag is set.
// 85 is the vendor's own "suspicious" threshold.
const unsafeRiskScore = 85

// urlPattern extracts the first http(s) URL from free text. Scam-check
// submissions are usually a pasted message containing the suspect link.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// IPQSClient checks URLs against the IPQualityScore scanner.
type IPQSClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewIPQS creates an IPQSClient with the given API key.
func NewIPQS(apiKey string, logger *slog.Logger) *IPQSClient {
	return &IPQSClient{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// ipqsResponse is the portion of the scanner's JSON response we care about.
type ipqsResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Unsafe     bool   `json:"unsafe"`
	Phishing   bool   `json:"phishing"`
	Malware    bool   `json:"malware"`
	Suspicious bool   `json:"suspicious"`
	RiskScore  int    `json:"risk_score"`
}

// Check scans the first URL found in the candidate text.
//
// A candidate with no URL returns a safe verdict without any network call —
// there is nothing for the URL scanner to look at (the language model still
// analyses the message text itself).
func (c *IPQSClient) Check(ctx context.Context, candidate string) (Result, error) {
	target := urlPattern.FindString(candidate)
	if target == "" {
		return Result{}, nil
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, c.apiKey, url.QueryEscape(target))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("safety: building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("safety: calling scanner: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("safety: scanner returned status %d", resp.StatusCode)
	}

	var body ipqsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("safety: decoding response: %w", err)
	}
	if !body.Success {
		return Result{}, fmt.Errorf("safety: scanner rejected request: %s", body.Message)
	}

	return verdict(target, body), nil
}

// verdict folds the scanner's flags into one Result.
func verdict(target string, body ipqsResponse) Result {
	var reasons []string
	if body.Phishing {
		reasons = append(reasons, "flagged as phishing")
	}
	if body.Malware {
		reasons = append(reasons, "flagged as malware")
	}
	if body.Unsafe || body.Suspicious || body.RiskScore >= unsafeRiskScore {
		reasons = append(reasons, fmt.Sprintf("risk score %d/100", body.RiskScore))
	}

	if len(reasons) == 0 {
		return Result{}
	}
	return Result{
		Unsafe: true,
		Reason: fmt.Sprintf("%s: %s", target, strings.Join(reasons, ", ")),
	}
}
