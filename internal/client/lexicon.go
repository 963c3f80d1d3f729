package client

import (
	"fmt"

	"github.com/ipfs/go-cid"
)

// Procedure and query identifiers used by the client
const (
	NSIDCreateSession  = "com.atproto.server.createSession"
	NSIDRefreshSession = "com.atproto.server.refreshSession"
	NSIDGetRecord      = "com.atproto.repo.getRecord"
	NSIDListRecords    = "com.atproto.repo.listRecords"
)

type createSessionInput struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type createSessionOutput struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

func (o *createSessionOutput) session() (*Session, error) {
	return newSession(o.DID, o.Handle, o.AccessJwt, o.RefreshJwt)
}

type refreshSessionOutput struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

func (o *refreshSessionOutput) session() (*Session, error) {
	return newSession(o.DID, o.Handle, o.AccessJwt, o.RefreshJwt)
}

// Record is a stored value with its addressing metadata
type Record[D any] struct {
	URI   string `json:"uri"`
	CID   string `json:"cid"`
	Value D      `json:"value"`
}

// ParsedCID decodes the record's content identifier
func (r *Record[D]) ParsedCID() (cid.Cid, error) {
	c, err := cid.Decode(r.CID)
	if err != nil {
		return cid.Undef, fmt.Errorf("invalid cid %q: %w", r.CID, err)
	}
	return c, nil
}

// RecordList is the listRecords response
type RecordList[D any] struct {
	Records []Record[D] `json:"records"`
	Cursor  string      `json:"cursor,omitempty"`
}
