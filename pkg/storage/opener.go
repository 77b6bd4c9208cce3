package storage

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const fileBufferSize = 64 * 1024

// Options configures an Opener.
type Options struct {
	// S3
	Region         string
	Endpoint       string
	PartSize       int64
	MaxConcurrency int

	// GCS
	CredentialsFile string

	// Standard streams, os.Stdin and os.Stdout when nil.
	Stdin  io.Reader
	Stdout io.Writer

	Logger *zap.Logger
}

// Opener opens sources and sinks by location. Cloud clients are created on
// first use and shared by everything the Opener opens.
type Opener struct {
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	s3Client *s3.Client
	uploader *manager.Uploader
	gcs      *storage.Client
}

// NewOpener creates an Opener.
func NewOpener(opts Options) *Opener {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	return &Opener{opts: opts, logger: logger.With(zap.String("component", "storage"))}
}

// OpenSource opens a location for reading.
func (o *Opener) OpenSource(ctx context.Context, raw string) (*Source, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case SchemeStdio:
		return NewSource(loc.Name(), o.opts.Stdin), nil

	case SchemeFile:
		f, err := os.Open(loc.Path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "could not open file for reading").
				WithDetail("path", loc.Path)
		}
		src := NewSource(loc.Name(), f)
		src.onClose(f.Close)
		return src, nil

	case SchemeS3:
		client, _, err := o.s3Clients(ctx)
		if err != nil {
			return nil, err
		}
		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(loc.Bucket),
			Key:    aws.String(loc.Key),
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "could not get S3 object").
				WithDetail("location", loc.String())
		}
		o.logger.Debug("opened S3 object",
			zap.String("location", loc.String()),
			zap.Int64p("size", out.ContentLength))
		src := NewSource(loc.Name(), out.Body)
		src.onClose(out.Body.Close)
		return src, nil

	case SchemeGCS:
		client, err := o.gcsClient(ctx)
		if err != nil {
			return nil, err
		}
		r, err := client.Bucket(loc.Bucket).Object(loc.Key).NewReader(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "could not open GCS object").
				WithDetail("location", loc.String())
		}
		o.logger.Debug("opened GCS object",
			zap.String("location", loc.String()),
			zap.Int64("size", r.Attrs.Size))
		src := NewSource(loc.Name(), r)
		src.onClose(r.Close)
		return src, nil
	}

	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported location %q", raw)
}

// CreateSink opens a location for writing. Local files are written to a
// temporary file that replaces the target on Close; cloud objects are
// uploaded as the data is sent and only committed on Close.
func (o *Opener) CreateSink(ctx context.Context, raw string) (*Sink, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case SchemeStdio:
		bw := bufio.NewWriterSize(o.opts.Stdout, fileBufferSize)
		sink := NewSink(loc.String(), bw)
		sink.commit = bw.Flush
		return sink, nil

	case SchemeFile:
		return o.createFileSink(loc)

	case SchemeS3:
		_, uploader, err := o.s3Clients(ctx)
		if err != nil {
			return nil, err
		}
		return o.createS3Sink(ctx, uploader, loc), nil

	case SchemeGCS:
		client, err := o.gcsClient(ctx)
		if err != nil {
			return nil, err
		}
		uploadCtx, cancel := context.WithCancel(ctx)
		w := client.Bucket(loc.Bucket).Object(loc.Key).NewWriter(uploadCtx)
		w.ContentType = loc.ContentType()

		sink := NewSink(loc.String(), w)
		sink.commit = func() error {
			defer cancel()
			return w.Close()
		}
		sink.abort = func(cause error) {
			// a cancelled context discards the upload
			cancel()
			_ = w.Close()
		}
		return sink, nil
	}

	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported location %q", raw)
}

func (o *Opener) createFileSink(loc Location) (*Sink, error) {
	dir, base := filepath.Split(loc.Path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "could not open file for writing").
			WithDetail("path", loc.Path)
	}

	bw := bufio.NewWriterSize(tmp, fileBufferSize)
	sink := NewSink(loc.String(), bw)
	sink.commit = func() error {
		if err := bw.Flush(); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return err
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmp.Name())
			return err
		}
		return os.Rename(tmp.Name(), loc.Path)
	}
	sink.abort = func(cause error) {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}
	return sink, nil
}

func (o *Opener) createS3Sink(ctx context.Context, uploader *manager.Uploader, loc Location) *Sink {
	pr, pw := io.Pipe()
	done := make(chan error, 1)

	go func() {
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(loc.Bucket),
			Key:         aws.String(loc.Key),
			Body:        pr,
			ContentType: aws.String(loc.ContentType()),
		})
		// unblock a writer if the upload failed early
		_ = pr.CloseWithError(err)
		done <- err
	}()

	sink := NewSink(loc.String(), pw)
	sink.commit = func() error {
		_ = pw.Close()
		if err := <-done; err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload to S3")
		}
		o.logger.Debug("uploaded S3 object", zap.String("location", loc.String()))
		return nil
	}
	sink.abort = func(cause error) {
		if cause == nil {
			cause = io.ErrClosedPipe
		}
		// an errored body makes the uploader abort the multipart upload
		_ = pw.CloseWithError(cause)
		<-done
	}
	return sink
}

func (o *Opener) s3Clients(ctx context.Context) (*s3.Client, *manager.Uploader, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.s3Client != nil {
		return o.s3Client, o.uploader, nil
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if o.opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(o.opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to load AWS configuration")
	}

	o.s3Client = s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.opts.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.opts.Endpoint)
			so.UsePathStyle = true
		}
	})
	o.uploader = manager.NewUploader(o.s3Client, func(u *manager.Uploader) {
		if o.opts.PartSize > 0 {
			u.PartSize = o.opts.PartSize
		}
		if o.opts.MaxConcurrency > 0 {
			u.Concurrency = o.opts.MaxConcurrency
		}
	})
	return o.s3Client, o.uploader, nil
}

func (o *Opener) gcsClient(ctx context.Context) (*storage.Client, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.gcs != nil {
		return o.gcs, nil
	}

	var opts []option.ClientOption
	if o.opts.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(o.opts.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}
	o.gcs = client
	return client, nil
}

// Close releases the cloud clients.
func (o *Opener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.gcs != nil {
		err := o.gcs.Close()
		o.gcs = nil
		return err
	}
	return nil
}
