package swiftbatch

import (
	"context"

	"github.com/joel-wright/swiftbatch/errors"
	"github.com/joel-wright/swiftbatch/internal/retry"
	"github.com/joel-wright/swiftbatch/swifttypes"
)

// Capabilities fetches the backend's discovery document from the given
// endpoint, or from the connection's own endpoint when empty. The probe is
// synchronous; no pool is involved.
func (s *Service) Capabilities(
	ctx context.Context,
	endpoint string,
	opts ...swifttypes.CallOption,
) (*swifttypes.ResultRecord, error) {
	o := s.options(opts)

	conn, err := s.connect(ctx)
	if err != nil {
		return nil, errors.NewError("capabilities", err)
	}
	defer conn.Close()

	rec := newRecord(swifttypes.ActionCapabilities, "", "")
	var doc map[string]any
	attempts, err := retry.Do(ctx, o.Retries, func() error {
		d, e := conn.Capabilities(ctx, endpoint)
		if e == nil {
			doc = d
		}
		return e
	})
	rec.Attempts = attempts
	if err != nil {
		err = errors.NewError("capabilities", err)
		finish(rec, err)
		return rec, err
	}

	rec.Capabilities = doc
	finish(rec, nil)
	return rec, nil
}
