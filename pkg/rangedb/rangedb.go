// Package rangedb assembles a ready-to-use pkg/client.Client from a
// rangedbcfg.Config: resolving the configured datastore and transport
// backends to concrete implementations, opening one local datastore per
// offset this rank serves, wiring any configured histograms onto each,
// and connecting the transport to its configured peers. It is the single
// place outside cmd/rangedb that knows how to turn config into a running
// system; main stays a thin shell over this constructor.
package rangedb

import (
	"fmt"

	"github.com/cuemby/rangedb/pkg/client"
	"github.com/cuemby/rangedb/pkg/datastore"
	"github.com/cuemby/rangedb/pkg/datastore/boltstore"
	"github.com/cuemby/rangedb/pkg/datastore/memstore"
	"github.com/cuemby/rangedb/pkg/hash"
	"github.com/cuemby/rangedb/pkg/histogram"
	"github.com/cuemby/rangedb/pkg/rangedbcfg"
	"github.com/cuemby/rangedb/pkg/rangeserver"
	"github.com/cuemby/rangedb/pkg/transport"
	"github.com/cuemby/rangedb/pkg/transport/grpctransport"
	"github.com/cuemby/rangedb/pkg/transport/localtransport"
)

// Open builds the local datastores this rank owns, a Dispatcher over
// them, the configured transport, and a Client wired to both. Callers
// that also need the Dispatcher and Transport directly (to run a
// grpctransport.Server, or to Register other ranks on a localtransport)
// get them back alongside the Client.
func Open(cfg rangedbcfg.Config) (*client.Client, *rangeserver.Dispatcher, transport.Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	placement := hash.Placement{
		ClientRatio:         cfg.ClientRatio,
		ServerRatio:         cfg.ServerRatio,
		DatastoresPerServer: cfg.DatastoresPerServer,
		WorldSize:           cfg.WorldSize,
	}

	var stores []datastore.Datastore
	if placement.IsRangeServer(cfg.Rank) {
		var err error
		stores, err = openLocalStores(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	dispatcher := rangeserver.New(int32(cfg.Rank), stores)

	tp, err := openTransport(cfg)
	if err != nil {
		closeAll(stores)
		return nil, nil, nil, err
	}

	c, err := client.New(cfg, dispatcher, tp)
	if err != nil {
		closeAll(stores)
		if tp != nil {
			tp.Close()
		}
		return nil, nil, nil, err
	}
	return c, dispatcher, tp, nil
}

// openLocalStores opens one Datastore per offset this rank serves
// (DatastoresPerServer of them) and applies every configured histogram
// to each.
func openLocalStores(cfg rangedbcfg.Config) ([]datastore.Datastore, error) {
	stores := make([]datastore.Datastore, 0, cfg.DatastoresPerServer)
	for offset := 0; offset < cfg.DatastoresPerServer; offset++ {
		store, err := newDatastore(cfg.Datastore)
		if err != nil {
			closeAll(stores)
			return nil, err
		}
		// The prefix already roots the disk-backed stores (boltstore's
		// directory), so the per-store name carries only rank and offset.
		name := fmt.Sprintf("rank%d-ds%d", cfg.Rank, offset)
		if err := store.Open(name); err != nil {
			closeAll(stores)
			return nil, fmt.Errorf("rangedb: open datastore %s: %w", name, err)
		}
		for _, h := range cfg.Histograms {
			store.ConfigureHistogram(h.Name, h.Config, histogram.EqualWidth(h.Config))
			if h.Read {
				if err := store.ReadHistograms([]string{h.Name}); err != nil {
					closeAll(stores)
					return nil, fmt.Errorf("rangedb: read histogram %s: %w", h.Name, err)
				}
			}
		}
		stores = append(stores, store)
	}
	return stores, nil
}

// newDatastore resolves a DatastoreType to a fresh, unopened backend.
// LevelDB and RocksDB both resolve to boltstore, the one disk-backed
// engine rangedb ships.
func newDatastore(cfg rangedbcfg.DatastoreConfig) (datastore.Datastore, error) {
	switch cfg.Type {
	case rangedbcfg.DatastoreInMemory:
		return memstore.New(), nil
	case rangedbcfg.DatastoreLevelDB, rangedbcfg.DatastoreRocksDB:
		return boltstore.New(cfg.Prefix, cfg.CreateIfMissing), nil
	default:
		return nil, fmt.Errorf("rangedb: unknown datastore type %q", cfg.Type)
	}
}

// openTransport resolves a TransportType to a connected transport.
// Transport. A None transport is legal (and in fact required) for a
// single-rank deployment, where the client never needs to send over the
// network at all.
func openTransport(cfg rangedbcfg.Config) (transport.Transport, error) {
	switch cfg.Transport.Type {
	case rangedbcfg.TransportNone:
		return localtransport.New(), nil
	case rangedbcfg.TransportGRPC:
		tp := grpctransport.NewTransport(grpctransport.InsecureDialOption())
		for rank, addr := range cfg.Transport.Peers {
			if int(rank) == cfg.Rank {
				continue
			}
			if err := tp.Connect(rank, addr); err != nil {
				tp.Close()
				return nil, fmt.Errorf("rangedb: connect peer rank %d: %w", rank, err)
			}
		}
		return tp, nil
	default:
		return nil, fmt.Errorf("rangedb: unknown transport type %q", cfg.Transport.Type)
	}
}

func closeAll(stores []datastore.Datastore) {
	for _, s := range stores {
		s.Close()
	}
}
