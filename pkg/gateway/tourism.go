package gateway

import (
	"context"
	"net/url"
	"strconv"

	"github.com/aicc6/weatherflick-batch/pkg/keyregistry"
)

// ContentType identifies a Korea Tourism Organization (KTO) content
// category. Each maps to one of the typed domain tables.
type ContentType string

const (
	ContentTourist  ContentType = "12"
	ContentCulture  ContentType = "14"
	ContentFestival ContentType = "15"
	ContentCourse   ContentType = "25"
	ContentLeisure  ContentType = "28"
	ContentLodging  ContentType = "32"
	ContentShopping ContentType = "38"
	ContentFood     ContentType = "39"
)

// TourismClient fetches paged listings from the KTO API.
type TourismClient struct {
	exec    *Executor
	baseURL string
}

// NewTourismClient creates a client bound to the KTO base URL.
func NewTourismClient(exec *Executor, baseURL string) *TourismClient {
	return &TourismClient{exec: exec, baseURL: baseURL}
}

// AreaBasedList fetches one page of the areaBasedList2 endpoint for a
// content type, in the shape the transform pipeline expects to map from.
func (c *TourismClient) AreaBasedList(ctx context.Context, contentType ContentType, pageNo, numOfRows int) (*Response, error) {
	q := url.Values{}
	q.Set("contentTypeId", string(contentType))
	q.Set("pageNo", strconv.Itoa(pageNo))
	q.Set("numOfRows", strconv.Itoa(numOfRows))
	q.Set("arrange", "C")
	q.Set("MobileOS", "ETC")
	q.Set("MobileApp", "weatherflick-batch")

	return c.exec.Call(ctx, keyregistry.ProviderKTO, c.baseURL, "/areaBasedList2", q)
}

// DetailCommon fetches the shared detail fields (overview, address,
// coordinates) for a single content ID.
func (c *TourismClient) DetailCommon(ctx context.Context, contentID string) (*Response, error) {
	q := url.Values{}
	q.Set("contentId", contentID)
	q.Set("defaultYN", "Y")
	q.Set("overviewYN", "Y")
	q.Set("addrinfoYN", "Y")
	q.Set("mapinfoYN", "Y")
	q.Set("MobileOS", "ETC")
	q.Set("MobileApp", "weatherflick-batch")

	return c.exec.Call(ctx, keyregistry.ProviderKTO, c.baseURL, "/detailCommon2", q)
}
