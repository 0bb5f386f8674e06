/*
Package metrics provides Prometheus metrics collection and exposition for
rangedb.

Every queue, shuffle, transport, datastore, and histogram operation touches
one of the package-level vectors declared in metrics.go; Collector adds a
second, pull-based path for values that are cheaper to sample periodically
than to update inline, currently the aggregated put/get counters each
local datastore tracks in its own Stats().

# Metrics Catalog

Queue/Flush:

rangedb_queue_depth{op}:
  - Type: Gauge
  - Pending items waiting to be flushed, by op kind

rangedb_items_enqueued_total{op}:
  - Type: Counter
  - Total items enqueued, by op kind

rangedb_flush_duration_seconds{op}:
  - Type: Histogram
  - Time to shuffle, send, and collect responses for one flush

rangedb_flush_items_total{op,status}:
  - Type: Counter
  - Items carried across all flushes, by op kind and outcome

Shuffle/Transport:

rangedb_hash_miss_total:
  - Type: Counter
  - Items dropped during shuffle because the hash returned an invalid id

rangedb_transport_errors_total{dst_rank}:
  - Type: Counter
  - Send/receive failures, by destination rank

rangedb_transport_round_trip_seconds{op}:
  - Type: Histogram
  - Round-trip time for one bulk request/response exchange

Datastore/Histogram:

rangedb_datastore_ops_total{datastore_id,op}:
  - Type: Counter
  - Datastore operations, by datastore id and op kind

rangedb_datastore_op_duration_seconds{datastore_id,op}:
  - Type: Histogram
  - Time spent inside one datastore bulk call

rangedb_histogram_total_count{datastore_id,name}:
  - Type: Gauge
  - TotalCount() of a configured histogram

rangedb_histogram_committed{datastore_id,name}:
  - Type: Gauge
  - Whether a configured histogram has committed its bucket set

rangedb_stats_num_puts{datastore_offset} / rangedb_stats_num_gets{datastore_offset}:
  - Type: Gauge
  - Snapshot of a local datastore's lifetime Stats, sampled by Collector

# Usage

	http.Handle("/metrics", metrics.Handler())
	collector := metrics.NewCollector(client)
	collector.Start()
	defer collector.Stop()
*/
package metrics
