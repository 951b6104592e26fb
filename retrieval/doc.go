// Package retrieval holds the similarity index over embedded source chunks.
//
// An Index is loaded once from a JSON snapshot and is read-only afterwards.
// A Retriever embeds a query, ranks chunks by cosine similarity and formats
// the best matches into one context blob for the system prompt. A Builder
// produces snapshots by walking a source tree, splitting files into chunks and
// embedding them.
//
// Retrieval never fails a caller: an empty index, a missing embedder, chunks
// without vectors or a failed query embedding all yield empty context.
package retrieval
