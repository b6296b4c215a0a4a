// Package ingestion loads documents, splits them into passages, embeds the
// passages and stores them in the passage index.
//
// Sources are http(s) URLs or local files. HTML is reduced to the text of its
// paragraphs (any CSS selector can be configured), anything else is read as
// plain text. Text is cut into overlapping chunks
// (1000 characters, 200 overlap by default). Chunks are embedded in batches
// on a worker pool, each batch retried with exponential backoff, and the
// normalized vectors are written with the passage.
//
// Passage IDs are content hashes, so ingesting the same source twice
// overwrites rather than duplicates.
package ingestion
