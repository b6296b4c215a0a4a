// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package storage provides the storage abstraction layer for ragchat.
//
// Two repositories back a conversation:
//
//   - CheckpointRepository: latest state and history per conversation thread
//   - PassageRepository: the vector index of ingested passages
//
// # Backends
//
//   - storage/badger: embedded BadgerDB, on disk or in memory; serves both repositories
//   - storage/redis: checkpoints in Redis for deployments sharing one store
//   - storage/pgvector: passages in PostgreSQL with the pgvector extension
//
// Backend constructors return concrete types; callers hold them through
// the interfaces defined here so backends can be swapped by configuration.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	checkpoints := badger.NewCheckpointRepository(backend)
//	seq, err := checkpoints.SaveCheckpoint(ctx, "thread-1", "route", state)
//
// Use in tests with in-memory storage:
//
//	checkpoints, passages, backend, err := badger.NewMemoryRepositories()
//
// # Encoding
//
// Checkpoints and passages are stored in a compact binary form built on
// mus-go serializers. Optional state fields carry a presence flag, so a
// context that was never retrieved decodes as nil while a retrieval that
// found nothing decodes as an empty slice.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
