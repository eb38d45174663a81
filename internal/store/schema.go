package store

import "context"

// ensureSchema creates the pgvector extension, pg_trgm (for indexed
// case-insensitive substring search over transcripts) and every table the
// Store needs, all idempotently. Vector columns are declared without a
// fixed dimension at the table level because embeddings of different
// models share the table but not a dimension; dimension is carried per
// row in the dimension column (not checked against the vector), and similarity search always
// restricts to one model_name so the underlying ANN index, when present,
// can still assume a uniform dimension within the rows it actually scans.
const schemaDDL = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS files (
	id               BIGSERIAL PRIMARY KEY,
	path             TEXT NOT NULL,
	filename         TEXT NOT NULL,
	parent_folder    TEXT NOT NULL,
	duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	width            INTEGER NOT NULL DEFAULT 0,
	height           INTEGER NOT NULL DEFAULT 0,
	frame_rate       DOUBLE PRECISION NOT NULL DEFAULT 0,
	codec            TEXT NOT NULL DEFAULT '',
	audio_tracks     INTEGER NOT NULL DEFAULT 0,
	pixel_format     TEXT NOT NULL DEFAULT '',
	color_space      TEXT NOT NULL DEFAULT '',
	color_transfer   TEXT NOT NULL DEFAULT '',
	color_primaries  TEXT NOT NULL DEFAULT '',
	size_bytes       BIGINT NOT NULL DEFAULT 0,
	fs_created_at    TIMESTAMPTZ,
	fs_modified_at   TIMESTAMPTZ,
	tags             TEXT[] NOT NULL DEFAULT '{}',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	indexed_at       TIMESTAMPTZ,
	deleted_at       TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS files_path_live_uidx
	ON files (path) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS scenes (
	id                 BIGSERIAL PRIMARY KEY,
	file_id            BIGINT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	scene_index        INTEGER NOT NULL,
	start_seconds      DOUBLE PRECISION NOT NULL,
	end_seconds        DOUBLE PRECISION NOT NULL,
	poster_path        TEXT NOT NULL DEFAULT '',
	transcript         TEXT NOT NULL DEFAULT '',
	has_transcript     BOOLEAN NOT NULL DEFAULT false,
	has_faces_scanned  BOOLEAN NOT NULL DEFAULT false,
	visual_cluster_id  BIGINT NOT NULL DEFAULT -1,
	visual_cluster_ord DOUBLE PRECISION NOT NULL DEFAULT 0,
	UNIQUE (file_id, scene_index)
);

CREATE INDEX IF NOT EXISTS scenes_file_idx ON scenes (file_id, scene_index);
CREATE INDEX IF NOT EXISTS scenes_transcript_trgm_idx ON scenes USING gin (transcript gin_trgm_ops);
CREATE INDEX IF NOT EXISTS scenes_visual_cluster_idx ON scenes (visual_cluster_id);

CREATE TABLE IF NOT EXISTS faces (
	id               BIGSERIAL PRIMARY KEY,
	scene_id         BIGINT NOT NULL REFERENCES scenes(id) ON DELETE CASCADE,
	bbox_x           INTEGER NOT NULL,
	bbox_y           INTEGER NOT NULL,
	bbox_w           INTEGER NOT NULL,
	bbox_h           INTEGER NOT NULL,
	vector           vector NOT NULL,
	face_cluster_id  BIGINT NOT NULL DEFAULT -1,
	face_cluster_ord DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS faces_scene_idx ON faces (scene_id);
CREATE INDEX IF NOT EXISTS faces_cluster_idx ON faces (face_cluster_id);

CREATE TABLE IF NOT EXISTS embeddings (
	id            BIGSERIAL PRIMARY KEY,
	scene_id      BIGINT NOT NULL REFERENCES scenes(id) ON DELETE CASCADE,
	model_name    TEXT NOT NULL,
	model_version TEXT NOT NULL,
	dimension     INTEGER NOT NULL,
	vector        vector NOT NULL,
	UNIQUE (scene_id, model_name)
);

CREATE INDEX IF NOT EXISTS embeddings_model_idx ON embeddings (model_name);

CREATE TABLE IF NOT EXISTS queue_items (
	id                BIGSERIAL PRIMARY KEY,
	file_id           BIGINT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	status            TEXT NOT NULL DEFAULT 'pending',
	queued_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at        TIMESTAMPTZ,
	completed_at      TIMESTAMPTZ,
	last_error        TEXT NOT NULL DEFAULT '',
	retry_count       INTEGER NOT NULL DEFAULT 0,
	current_stage     TEXT NOT NULL DEFAULT '',
	current_stage_num INTEGER NOT NULL DEFAULT 0,
	total_stages      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS queue_items_status_queued_idx ON queue_items (status, queued_at, id);
CREATE INDEX IF NOT EXISTS queue_items_file_idx ON queue_items (file_id);

CREATE TABLE IF NOT EXISTS config_entries (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaDDL)
	return err
}
