package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/blockcache"
	"github.com/hupe1980/blockcache/blobstore"
	"github.com/hupe1980/blockcache/blobstore/minio"
	"github.com/hupe1980/blockcache/blobstore/s3"
	"github.com/hupe1980/blockcache/codec"
	"github.com/hupe1980/blockcache/device"
)

func noClose() error { return nil }

// openDevice builds the device selected by --device. The returned func
// releases it.
func openDevice(ctx context.Context, o options) (blockcache.Device, func() error, error) {
	switch o.device {
	case "memory":
		return device.NewMemory(o.blockSize), noClose, nil

	case "file":
		if o.path == "" {
			return nil, nil, errors.New("--path is required for the file device")
		}
		d, err := device.OpenFile(o.path, o.blockSize)
		if err != nil {
			return nil, nil, err
		}
		return d, func() error {
			if err := d.Sync(); err != nil {
				_ = d.Close()
				return err
			}
			return d.Close()
		}, nil

	case "local":
		if o.path == "" {
			return nil, nil, errors.New("--path is required for the local device")
		}
		return blobDevice(blobstore.NewLocalStore(o.path), o), noClose, nil

	case "s3":
		if o.bucket == "" {
			return nil, nil, errors.New("--bucket is required for the s3 device")
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load AWS config: %w", err)
		}
		client := awss3.NewFromConfig(cfg, func(so *awss3.Options) {
			if o.endpoint != "" {
				so.BaseEndpoint = aws.String(o.endpoint)
				so.UsePathStyle = true
			}
		})
		return blobDevice(s3.NewStore(client, o.bucket, o.prefix), o), noClose, nil

	case "minio":
		if o.bucket == "" || o.endpoint == "" {
			return nil, nil, errors.New("--bucket and --endpoint are required for the minio device")
		}
		client, err := miniogo.New(o.endpoint, &miniogo.Options{
			Creds:  credentials.NewEnvMinio(),
			Secure: o.secure,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("minio client: %w", err)
		}
		return blobDevice(minio.NewStore(client, o.bucket, o.prefix), o), noClose, nil
	}
	return nil, nil, fmt.Errorf("unknown device %q", o.device)
}

func blobDevice(store blobstore.Store, o options) *device.Blob {
	return device.NewBlob(store, o.blockSize, device.WithCodec(codec.New(o.codec, codec.WithMaxBlockSize(uint32(o.blockSize)))))
}
