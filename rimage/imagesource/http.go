package imagesource

import (
	"context"
	"image"
	"net/http"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/stereocalib/logging"
	// jpeg and png snapshot endpoints.
	_ "image/jpeg"
	_ "image/png"
)

// HTTPSource polls a camera snapshot URL. It never ends on its own.
type HTTPSource struct {
	client http.Client
	URL    string
	logger logging.Logger
}

// NewHTTPSource returns a live source reading url.
func NewHTTPSource(url string, logger logging.Logger) *HTTPSource {
	return &HTTPSource{URL: url, logger: logger}
}

// Next fetches and decodes one snapshot.
func (hs *HTTPSource) Next(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hs.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := hs.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't read url (%s)", hs.URL)
	}
	defer goutils.UncheckedErrorFunc(resp.Body.Close)
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("couldn't read url (%s): %s", hs.URL, resp.Status)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't decode snapshot from %s", hs.URL)
	}
	return img, nil
}

// Live implements LiveSource.
func (hs *HTTPSource) Live() bool {
	return true
}

// Close releases idle connections.
func (hs *HTTPSource) Close(ctx context.Context) error {
	hs.client.CloseIdleConnections()
	return nil
}
