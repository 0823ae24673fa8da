package upstream

import (
	"context"
	"net/url"
	"strconv"
)

// PageFetcher fetches one page of size pageSize starting at offset.
type PageFetcher[T any] func(ctx context.Context, offset, pageSize int) ([]T, error)

// Paginate fetches pages of pageSize until a page returns fewer items than
// requested, or the safety cap is reached (§4.2).
func Paginate[T any](ctx context.Context, pageSize, safetyCap int, fetch PageFetcher[T]) ([]T, error) {
	var all []T
	offset := 0
	for page := 0; page < safetyCap; page++ {
		items, err := fetch(ctx, offset, pageSize)
		if err != nil {
			return all, err
		}
		all = append(all, items...)
		if len(items) < pageSize {
			return all, nil
		}
		offset += pageSize
	}
	return all, nil
}

// offsetQuery builds the standard limit/offset query parameters shared by
// the paginated metadata and trades endpoints.
func offsetQuery(offset, limit int) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return q
}
