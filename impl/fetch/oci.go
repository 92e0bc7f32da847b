package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aceeric/imgpreload/impl/config"
	"github.com/aceeric/imgpreload/impl/metrics"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	log "github.com/sirupsen/logrus"
)

// OCI fetches 'oci://' identifiers by pulling the image from its registry with crane
// and saving it as a tarball.
type OCI struct {
	sink Sink
}

// NewOCI returns an OCI fetcher that saves pulled images into 'sink'. If 'sink' is
// nil the image is pulled and the tarball discarded.
func NewOCI(sink Sink) *OCI {
	return &OCI{sink: sink}
}

func (o *OCI) Schemes() []string {
	return []string{"oci"}
}

func (o *OCI) Fetch(ctx context.Context, identifier string) error {
	src := strings.TrimPrefix(identifier, "oci://")
	ref, err := name.ParseReference(src)
	if err != nil {
		return fmt.Errorf("unable to parse image reference %s: %w", identifier, err)
	}
	opts, err := craneOpts(ctx, ref.Context().RegistryStr())
	if err != nil {
		return err
	}
	img, err := crane.Pull(src, opts...)
	if err != nil {
		return err
	}
	if o.sink == nil {
		cw := &countingWriter{}
		if err := tarball.Write(ref, img, cw); err != nil {
			return err
		}
		metrics.AddBytesFetched(float64(cw.n))
		return nil
	}
	staged := o.sink.Stage()
	if err := crane.Save(img, src, staged); err != nil {
		return err
	}
	d, n, err := o.sink.Commit(identifier, staged)
	if err != nil {
		return err
	}
	metrics.AddBytesFetched(float64(n))
	log.Debugf("saved %s as %s", identifier, d)
	return nil
}

// craneOpts builds the crane options for the passed registry from the host
// configuration.
func craneOpts(ctx context.Context, registry string) ([]crane.Option, error) {
	opts := []crane.Option{crane.WithContext(ctx)}
	hostOpts, err := config.ConfigFor(registry)
	if err != nil {
		return nil, err
	}
	user, password, err := credentials(hostOpts)
	if err != nil {
		return nil, err
	}
	if user != "" {
		opts = append(opts, crane.WithAuth(&authn.Basic{Username: user, Password: password}))
	}
	if hostOpts.TlsCfg != nil {
		transport := remote.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = hostOpts.TlsCfg
		opts = append(opts, crane.WithTransport(transport))
	}
	return opts, nil
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
