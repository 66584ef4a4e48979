// Command mediatool runs batch maintenance over the shelter media store.
//
// It reads the same environment as the server (DATA_DIR, DATABASE_DIR,
// POLICY_FILE and the document tool settings) and holds an exclusive lock
// on DATA_DIR/mediatool.lock while it runs, so that a cron job and a manual
// run never rewrite the same records.
//
// Commands:
//
//	mediatool expire [--today YYYY-MM-DD]
//	mediatool scale-images
//	mediatool scale-pdfs
//	mediatool scale-odts
//	mediatool vacuum
//
// Pass --json for machine readable results.
package main
