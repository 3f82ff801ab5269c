// Command borsa-crawler harvests share identifiers and market data from Borsa Italiana.
//
// Architecture overview:
//   - Listing scrape: the A-Z listing is fetched as a fixed letter x page grid through a bounded pool, and every
//     anchor yields a named ISIN. Identifiers are inserted with plain inserts.
//   - Detail scrape: every stored (or stale) ISIN has its "dati completi" page fetched and turned into four
//     sub-records by a label or positional field extractor. Upserts keep stored values where a field is absent.
//   - Fetch pipeline: a Colly getter behind a per-host rate limiter and an exponential backoff driver, optionally
//     decorated to archive every raw page into a content-addressed blob store (memory, local or GCS).
//   - Runs: each workflow is timed, counted in Prometheus and summarised; summaries can be published to Pub/Sub.
//     The serve command queues runs requested over HTTP onto a bounded queue drained by a fixed worker pool.
//
// Quick checklist:
//   - Configure env vars: BORSA_DB_DSN, BORSA_STORAGE_BACKEND, BORSA_PUBSUB_PROJECT_ID/TOPIC_NAME, BORSA_HTTP_*.
//   - Create the schema: borsa-crawler migrate up.
//   - Harvest: borsa-crawler isins && borsa-crawler shares, then borsa-crawler refresh on a schedule.
//   - Serve: borsa-crawler serve --config config.yaml.
package main

import (
	"github.com/JakeFAU/borsa-crawler/cmd"
)

func main() {
	cmd.Execute()
}
