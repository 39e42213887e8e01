package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bodii/foodsearch/pkg/types"
)

// KFDA open-data API configuration
const (
	// DefaultBaseURL is the KFDA food nutrient database endpoint
	DefaultBaseURL = "https://apis.data.go.kr/1471000/FoodNtrCpntDbInfo02/getFoodNtrCpntDbInq02"

	// resultCodeOK and resultCodeNoData are the API's header codes
	resultCodeOK     = "00"
	resultCodeNoData = "03"

	defaultHTTPTimeout = 10 * time.Second
)

// KFDAClient implements Client against the Korean government food
// database (data.go.kr service FoodNtrCpntDbInfo02).
type KFDAClient struct {
	serviceKey string
	baseURL    string
	httpClient *http.Client
}

// KFDAOption configures a KFDAClient
type KFDAOption func(*KFDAClient)

// WithBaseURL overrides the API endpoint, mainly for tests
func WithBaseURL(baseURL string) KFDAOption {
	return func(c *KFDAClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient overrides the HTTP client used for API calls
func WithHTTPClient(client *http.Client) KFDAOption {
	return func(c *KFDAClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewKFDAClient creates a client for the KFDA nutrition API. The
// service key is issued by the data.go.kr open-data portal.
func NewKFDAClient(serviceKey string, opts ...KFDAOption) (*KFDAClient, error) {
	if serviceKey == "" {
		return nil, ErrMissingServiceKey
	}

	c := &KFDAClient{
		serviceKey: serviceKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// kfdaResponse mirrors the API's envelope. The items field is raw
// because the API returns an object instead of an array when a page
// holds a single row.
type kfdaResponse struct {
	Header struct {
		ResultCode string `json:"resultCode"`
		ResultMsg  string `json:"resultMsg"`
	} `json:"header"`
	Body struct {
		TotalCount int             `json:"totalCount"`
		Items      json.RawMessage `json:"items"`
	} `json:"body"`
}

// kfdaFood is one row of the nutrient database. All numeric fields
// arrive as strings, sometimes with comma separators.
type kfdaFood struct {
	FoodCode      string `json:"FOOD_CD"`
	Name          string `json:"FOOD_NM_KR"`
	Calories      string `json:"AMT_NUM1"`
	Protein       string `json:"AMT_NUM3"`
	Fat           string `json:"AMT_NUM4"`
	Carbohydrates string `json:"AMT_NUM6"`
	Sugar         string `json:"AMT_NUM7"`
	Fiber         string `json:"AMT_NUM8"`
	Sodium        string `json:"AMT_NUM13"`
	ServingWeight string `json:"Z10500"`
	ServingSize   string `json:"SERVING_SIZE"`
}

// Search queries the remote database for foods matching the name
func (c *KFDAClient) Search(ctx context.Context, query string, limit int) ([]types.FoodItem, error) {
	params := c.baseParams(1, limit)
	params.Set("FOOD_NM_KR", query)
	items, _, err := c.fetch(ctx, params)
	return items, err
}

// FetchPage retrieves one unfiltered page of the whole database,
// for bulk downloads. It returns the page's foods and the database's
// total row count.
func (c *KFDAClient) FetchPage(ctx context.Context, pageNo, numOfRows int) ([]types.FoodItem, int, error) {
	return c.fetch(ctx, c.baseParams(pageNo, numOfRows))
}

func (c *KFDAClient) baseParams(pageNo, numOfRows int) url.Values {
	params := url.Values{}
	params.Set("serviceKey", c.serviceKey)
	params.Set("pageNo", strconv.Itoa(pageNo))
	params.Set("numOfRows", strconv.Itoa(numOfRows))
	params.Set("type", "json")
	return params
}

func (c *KFDAClient) fetch(ctx context.Context, params url.Values) ([]types.FoodItem, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create KFDA request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to call KFDA API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read KFDA response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("%w: HTTP %d: %s", ErrAPIStatus, resp.StatusCode, truncateBody(body))
	}

	// The portal answers XML when the key is rejected, regardless of
	// the requested type
	if strings.HasPrefix(strings.TrimSpace(string(body)), "<") {
		return nil, 0, fmt.Errorf("%w: non-JSON body, check service key", ErrMalformedResponse)
	}

	var parsed kfdaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	switch parsed.Header.ResultCode {
	case resultCodeOK:
	case resultCodeNoData:
		return nil, 0, nil
	default:
		return nil, 0, fmt.Errorf("%w: [%s] %s", ErrAPIStatus, parsed.Header.ResultCode, parsed.Header.ResultMsg)
	}

	rows, err := decodeItems(parsed.Body.Items)
	if err != nil {
		return nil, 0, err
	}

	items := make([]types.FoodItem, 0, len(rows))
	for _, row := range rows {
		if item, ok := row.toFoodItem(); ok {
			items = append(items, item)
		}
	}
	return items, parsed.Body.TotalCount, nil
}

// decodeItems handles the API quirk of returning a bare object for
// single-row pages
func decodeItems(raw json.RawMessage) ([]kfdaFood, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var rows []kfdaFood
	if err := json.Unmarshal(raw, &rows); err == nil {
		return rows, nil
	}

	var single kfdaFood
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return []kfdaFood{single}, nil
}

// toFoodItem converts an API row, reporting ok=false for rows missing
// the code, name, or calorie amount the engine requires
func (r *kfdaFood) toFoodItem() (types.FoodItem, bool) {
	code := strings.TrimSpace(r.FoodCode)
	name := strings.TrimSpace(r.Name)
	if code == "" || name == "" {
		return types.FoodItem{}, false
	}

	calories, ok := parseAmount(r.Calories)
	if !ok {
		return types.FoodItem{}, false
	}

	nutrition := types.Nutrition{Calories: calories}
	if v, ok := parseAmount(r.Carbohydrates); ok {
		nutrition.Carbohydrates = v
	}
	if v, ok := parseAmount(r.Protein); ok {
		nutrition.Protein = v
	}
	if v, ok := parseAmount(r.Fat); ok {
		nutrition.Fat = v
	}
	if v, ok := parseAmount(r.Sodium); ok {
		nutrition.Sodium = &v
	}
	if v, ok := parseAmount(r.Fiber); ok {
		nutrition.Fiber = &v
	}
	if v, ok := parseAmount(r.Sugar); ok {
		nutrition.Sugar = &v
	}

	servingSize, servingUnit := parseServing(r.ServingWeight, r.ServingSize)

	item := types.NewFoodItem(name, nutrition, servingSize, servingUnit, types.SourceGovernmentAPI)
	item.ExternalCode = code
	return item, true
}

// parseAmount converts the API's string amounts, tolerating comma
// separators ("1,234.5")
func parseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// servingWeightRe matches the Z10500 field shape, e.g. "900.000g"
var servingWeightRe = regexp.MustCompile(`^([\d,.]+)\s*(.*)$`)

// parseServing extracts the serving amount and unit from the Z10500
// field, falling back to the numeric prefix of SERVING_SIZE
func parseServing(weight, fallback string) (float64, string) {
	if m := servingWeightRe.FindStringSubmatch(strings.TrimSpace(weight)); m != nil {
		if size, ok := parseAmount(m[1]); ok {
			return size, strings.TrimSpace(m[2])
		}
	}
	if m := servingWeightRe.FindStringSubmatch(strings.TrimSpace(fallback)); m != nil {
		if size, ok := parseAmount(m[1]); ok {
			return size, strings.TrimSpace(m[2])
		}
	}
	return 0, ""
}

func truncateBody(body []byte) string {
	const maxLen = 200
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
