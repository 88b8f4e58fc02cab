package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Provider routes locations to the local store or to S3. The S3 store is created on
// first use so that commands reading local files never touch AWS configuration.
type Provider struct {
	local ObjectStore

	s3Once  sync.Once
	s3Init  func() (ObjectStore, error)
	s3Store ObjectStore
	s3Err   error
}

func NewProvider(local ObjectStore, s3Init func() (ObjectStore, error)) *Provider {
	return &Provider{local: local, s3Init: s3Init}
}

func (p *Provider) store(loc Location) (ObjectStore, error) {
	if !loc.IsS3() {
		return p.local, nil
	}

	p.s3Once.Do(func() {
		if p.s3Init == nil {
			p.s3Err = fmt.Errorf("s3 storage is not configured")
			return
		}
		p.s3Store, p.s3Err = p.s3Init()
	})
	return p.s3Store, p.s3Err
}

func (p *Provider) Open(ctx context.Context, loc Location) (io.ReadCloser, Object, error) {
	store, err := p.store(loc)
	if err != nil {
		return nil, Object{}, err
	}
	return store.GetObject(ctx, loc.Bucket, loc.Key)
}

func (p *Provider) Put(ctx context.Context, loc Location, data io.Reader) error {
	store, err := p.store(loc)
	if err != nil {
		return err
	}
	return store.PutObject(ctx, loc.Bucket, loc.Key, data)
}
