package vgb

import (
	"encoding/binary"

	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slog"
)

// QueryPool is a pool of GPU timestamp queries
type QueryPool struct {
	device *Device
	pool   core1_0.QueryPool
	count  int

	destroyed bool
}

// NewQueryPool creates a pool of count timestamp queries
func NewQueryPool(device *Device, count int) (*QueryPool, error) {
	if count <= 0 {
		return nil, invalidUsage("query pool requires at least one query, got %d", count)
	}
	device.logger.Debug("QueryPool::New", slog.Int("count", count))

	pool, _, err := device.device.CreateQueryPool(nil, core1_0.QueryPoolCreateInfo{
		QueryType:  core1_0.QueryTypeTimestamp,
		QueryCount: count,
	})
	if err != nil {
		return nil, err
	}

	return &QueryPool{
		device: device,
		pool:   pool,
		count:  count,
	}, nil
}

func (p *QueryPool) Count() int { return p.count }

func (p *QueryPool) NativeQueryPool() core1_0.QueryPool { return p.pool }

// TryGetData reads every query's 64-bit result into results. It returns false without waiting
// if any result is not yet available.
func (p *QueryPool) TryGetData(results []uint64) (bool, error) {
	if len(results) < p.count {
		return false, invalidUsage("query results need room for %d values, got %d", p.count, len(results))
	}

	data := make([]byte, p.count*8)
	res, err := p.pool.PopulateResults(0, p.count, data, 8, core1_0.QueryResult64Bit)
	if res == core1_0.VKNotReady {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for index := 0; index < p.count; index++ {
		results[index] = binary.LittleEndian.Uint64(data[index*8:])
	}
	return true, nil
}

// Destroy hands the native pool to the device collector
func (p *QueryPool) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.device.Collect(NativeQueryPool(p.pool))
}
