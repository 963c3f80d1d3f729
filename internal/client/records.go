package client

import (
	"context"
	"net/url"
)

func recordParams(repo, collection, rkey string) url.Values {
	params := url.Values{}
	params.Set("repo", repo)
	params.Set("collection", collection)
	if rkey != "" {
		params.Set("rkey", rkey)
	}
	return params
}

// GetRecord fetches one record and returns its value.
// rkey may be empty to let the service pick.
func GetRecord[D any](ctx context.Context, c *Client, repo, collection, rkey string) (D, error) {
	record, err := GetRecordEnvelope[D](ctx, c, repo, collection, rkey)
	if err != nil {
		var zero D
		return zero, err
	}
	return record.Value, nil
}

// GetRecordEnvelope fetches one record with its uri and cid
func GetRecordEnvelope[D any](ctx context.Context, c *Client, repo, collection, rkey string) (*Record[D], error) {
	record, err := Query[Record[D]](ctx, c, NSIDGetRecord, recordParams(repo, collection, rkey))
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListRecords returns the values of a collection in the order the service lists them
func ListRecords[D any](ctx context.Context, c *Client, repo, collection, rkey string) ([]D, error) {
	records, err := ListRecordEnvelopes[D](ctx, c, repo, collection, rkey)
	if err != nil {
		return nil, err
	}

	values := make([]D, 0, len(records))
	for _, r := range records {
		values = append(values, r.Value)
	}
	return values, nil
}

// ListRecordEnvelopes returns the records of a collection with their uri and cid
func ListRecordEnvelopes[D any](ctx context.Context, c *Client, repo, collection, rkey string) ([]Record[D], error) {
	list, err := Query[RecordList[D]](ctx, c, NSIDListRecords, recordParams(repo, collection, rkey))
	if err != nil {
		return nil, err
	}
	return list.Records, nil
}
