package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/hearo-audio/hearo-core/internal/infrastructure/config"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
)

const pingTimeout = 5 * time.Second

// Client writes device telemetry to InfluxDB. Writes are batched and
// non-blocking; write errors are reported on a background goroutine
// and logged, never surfaced to the caller.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig
	log      *logging.Logger

	mu        sync.RWMutex
	connected bool

	done chan struct{}
}

// Connect creates a client and verifies the server is reachable.
func Connect(cfg config.InfluxDBConfig, log *logging.Logger) (*Client, error) {
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.BatchSize)).
		SetFlushInterval(uint(cfg.FlushInterval))

	c := &Client{
		client: influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts),
		cfg:    cfg,
		log:    log,
		done:   make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	ok, err := c.client.Ping(ctx)
	if err != nil {
		c.client.Close()
		return nil, fmt.Errorf("influxdb ping: %w", err)
	}
	if !ok {
		c.client.Close()
		return nil, fmt.Errorf("influxdb at %s not ready", cfg.URL)
	}

	c.writeAPI = c.client.WriteAPI(cfg.Org, cfg.Bucket)
	c.connected = true

	go c.watchErrors()
	return c, nil
}

// watchErrors drains the async write error channel until Close.
func (c *Client) watchErrors() {
	errCh := c.writeAPI.Errors()
	for {
		select {
		case err, open := <-errCh:
			if !open {
				return
			}
			if err != nil {
				c.log.Warn("influxdb write failed", "error", err)
			}
		case <-c.done:
			return
		}
	}
}

// IsConnected reports whether the client passed its last health check.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// WritePoint queues one measurement for batched delivery.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
}

// Flush forces delivery of any buffered points.
func (c *Client) Flush() {
	if c.writeAPI != nil {
		c.writeAPI.Flush()
	}
}

// Close flushes buffered points and releases the connection.
func (c *Client) Close() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	close(c.done)
	if c.writeAPI != nil {
		c.writeAPI.Flush()
	}
	c.client.Close()
}
