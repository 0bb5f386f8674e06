package wire

import (
	"github.com/cuemby/rangedb/pkg/cursor"
	"github.com/cuemby/rangedb/pkg/rangedberr"
)

// BulkRequest is one batched message of Header.Count slots, all of one
// operation kind, destined for one range server. Exactly one of the
// slot slices is populated, matching Header.Op.
type BulkRequest struct {
	Header     Header
	Puts       []PutRequestSlot
	Gets       []GetRequestSlot
	GetOps     []GetOpRequestSlot
	Deletes    []DeleteRequestSlot
	Histograms []HistogramRequestSlot
}

// BulkResponse mirrors BulkRequest: one response slot per request slot,
// in the same order.
type BulkResponse struct {
	Header     Header
	Puts       []PutResponseSlot
	Gets       []GetResponseSlot
	GetOps     []GetOpResponseSlot
	Deletes    []DeleteResponseSlot
	Histograms []HistogramResponseSlot
}

// Pack serializes a BulkRequest to its wire bytes.
func (r *BulkRequest) Pack() ([]byte, error) {
	c := cursor.NewWriter(nil)
	if err := r.Header.pack(c); err != nil {
		return nil, err
	}
	var err error
	switch r.Header.Op {
	case OpPut:
		for _, s := range r.Puts {
			if err = s.pack(c); err != nil {
				return nil, err
			}
		}
	case OpGet:
		for _, s := range r.Gets {
			if err = s.pack(c); err != nil {
				return nil, err
			}
		}
	case OpGetOp:
		for _, s := range r.GetOps {
			if err = s.pack(c); err != nil {
				return nil, err
			}
		}
	case OpDelete:
		for _, s := range r.Deletes {
			if err = s.pack(c); err != nil {
				return nil, err
			}
		}
	case OpHistogram:
		for _, s := range r.Histograms {
			if err = s.pack(c); err != nil {
				return nil, err
			}
		}
	default:
		return nil, rangedberr.New(rangedberr.BadTag, "wire.BulkRequest.Pack")
	}
	return c.Bytes(), nil
}

// UnpackRequest parses a BulkRequest from wire bytes.
func UnpackRequest(buf []byte) (*BulkRequest, error) {
	c := cursor.NewReader(buf)
	h, err := unpackHeader(c)
	if err != nil {
		return nil, err
	}
	r := &BulkRequest{Header: h}
	switch h.Op {
	case OpPut:
		r.Puts = make([]PutRequestSlot, h.Count)
		for i := range r.Puts {
			if r.Puts[i], err = unpackPutRequestSlot(c); err != nil {
				return nil, err
			}
		}
	case OpGet:
		r.Gets = make([]GetRequestSlot, h.Count)
		for i := range r.Gets {
			if r.Gets[i], err = unpackGetRequestSlot(c); err != nil {
				return nil, err
			}
		}
	case OpGetOp:
		r.GetOps = make([]GetOpRequestSlot, h.Count)
		for i := range r.GetOps {
			if r.GetOps[i], err = unpackGetOpRequestSlot(c); err != nil {
				return nil, err
			}
		}
	case OpDelete:
		r.Deletes = make([]DeleteRequestSlot, h.Count)
		for i := range r.Deletes {
			if r.Deletes[i], err = unpackDeleteRequestSlot(c); err != nil {
				return nil, err
			}
		}
	case OpHistogram:
		r.Histograms = make([]HistogramRequestSlot, h.Count)
		for i := range r.Histograms {
			if r.Histograms[i], err = unpackHistogramRequestSlot(c); err != nil {
				return nil, err
			}
		}
	default:
		return nil, rangedberr.New(rangedberr.BadTag, "wire.UnpackRequest")
	}
	return r, nil
}

// Pack serializes a BulkResponse to its wire bytes.
func (r *BulkResponse) Pack() ([]byte, error) {
	c := cursor.NewWriter(nil)
	if err := r.Header.pack(c); err != nil {
		return nil, err
	}
	var err error
	switch r.Header.Op {
	case OpPut:
		for _, s := range r.Puts {
			if err = s.pack(c); err != nil {
				return nil, err
			}
		}
	case OpGet:
		for _, s := range r.Gets {
			if err = s.pack(c); err != nil {
				return nil, err
			}
		}
	case OpGetOp:
		for _, s := range r.GetOps {
			if err = s.pack(c); err != nil {
				return nil, err
			}
		}
	case OpDelete:
		for _, s := range r.Deletes {
			if err = s.pack(c); err != nil {
				return nil, err
			}
		}
	case OpHistogram:
		for _, s := range r.Histograms {
			if err = s.pack(c); err != nil {
				return nil, err
			}
		}
	default:
		return nil, rangedberr.New(rangedberr.BadTag, "wire.BulkResponse.Pack")
	}
	return c.Bytes(), nil
}

// UnpackResponse parses a BulkResponse from wire bytes.
func UnpackResponse(buf []byte) (*BulkResponse, error) {
	c := cursor.NewReader(buf)
	h, err := unpackHeader(c)
	if err != nil {
		return nil, err
	}
	r := &BulkResponse{Header: h}
	switch h.Op {
	case OpPut:
		r.Puts = make([]PutResponseSlot, h.Count)
		for i := range r.Puts {
			if r.Puts[i], err = unpackPutResponseSlot(c); err != nil {
				return nil, err
			}
		}
	case OpGet:
		r.Gets = make([]GetResponseSlot, h.Count)
		for i := range r.Gets {
			if r.Gets[i], err = unpackGetResponseSlot(c); err != nil {
				return nil, err
			}
		}
	case OpGetOp:
		r.GetOps = make([]GetOpResponseSlot, h.Count)
		for i := range r.GetOps {
			if r.GetOps[i], err = unpackGetOpResponseSlot(c); err != nil {
				return nil, err
			}
		}
	case OpDelete:
		r.Deletes = make([]DeleteResponseSlot, h.Count)
		for i := range r.Deletes {
			if r.Deletes[i], err = unpackDeleteResponseSlot(c); err != nil {
				return nil, err
			}
		}
	case OpHistogram:
		r.Histograms = make([]HistogramResponseSlot, h.Count)
		for i := range r.Histograms {
			if r.Histograms[i], err = unpackHistogramResponseSlot(c); err != nil {
				return nil, err
			}
		}
	default:
		return nil, rangedberr.New(rangedberr.BadTag, "wire.UnpackResponse")
	}
	return r, nil
}
