package syncclient

import (
	"context"
	"time"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/patient"
)

// Changes is the result of one pull.
type Changes struct {
	Records []patient.Record
	// Cursor marks the point the pull observed; pass it to the next Pull.
	Cursor string
}

// Puller fetches the server's records changed since cursor.
type Puller interface {
	Pull(ctx context.Context, cursor string) (Changes, error)
}

// HTTPPuller pulls over the sync client. The server has no change feed, so
// every pull is a full snapshot and the cursor only records when it was
// taken.
type HTTPPuller struct {
	client *Client
}

func NewHTTPPuller(c *Client) *HTTPPuller {
	return &HTTPPuller{client: c}
}

func (p *HTTPPuller) Pull(ctx context.Context, _ string) (Changes, error) {
	records, err := p.client.PatientRecords(ctx)
	if err != nil {
		return Changes{Records: []patient.Record{}}, err
	}
	return Changes{
		Records: records,
		Cursor:  p.client.now().UTC().Format(time.RFC3339Nano),
	}, nil
}
