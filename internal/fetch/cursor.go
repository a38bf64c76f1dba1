package fetch

import (
	"context"
	"fmt"
	"net/url"
)

// FetchAllCursor retrieves every record from a cursor-paginated endpoint.
// Instead of a page index the server reports has_more, and each iteration
// passes the last record's id as starting_after. Terminates when the server
// reports no more data or a page comes back empty.
//
// The same first-page/mid-fetch failure split as FetchAll applies. Cursor
// endpoints declare no total, so Report.Expected stays zero.
func (c *Client) FetchAllCursor(ctx context.Context, endpoint string, params url.Values) ([]map[string]any, *Report, error) {
	report := &Report{}

	p := url.Values{}
	for k, vs := range params {
		p[k] = vs
	}
	p.Set("limit", fmt.Sprint(c.pageSize))

	var all []map[string]any
	for {
		env, err := c.getPage(ctx, endpoint, p)
		if err != nil {
			if report.Pages == 0 {
				return nil, report, fmt.Errorf("fetch first page of %s: %w", endpoint, err)
			}
			c.logger.Warn().Err(err).Str("endpoint", endpoint).
				Msg("cursor page fetch failed, truncating source")
			report.Truncated = true
			break
		}
		report.Pages++

		if len(env.Data) == 0 {
			break
		}
		all = append(all, env.Data...)

		if !env.HasMore {
			break
		}
		last := env.Data[len(env.Data)-1]
		id, ok := last["id"]
		if !ok {
			c.logger.Warn().Str("endpoint", endpoint).Msg("cursor record has no id, stopping")
			break
		}
		p.Set("starting_after", fmt.Sprint(id))
	}

	report.Fetched = len(all)
	report.DuplicateIDs = countDuplicateIDs(all)
	return all, report, nil
}
