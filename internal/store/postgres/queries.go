package postgres

const schema = `
CREATE TABLE IF NOT EXISTS direct_messages (
	seq         BIGSERIAL   PRIMARY KEY,
	id          UUID        NOT NULL UNIQUE,
	conv_low    TEXT        NOT NULL,
	conv_high   TEXT        NOT NULL,
	sender_id   TEXT        NOT NULL,
	receiver_id TEXT        NOT NULL,
	content     TEXT        NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS direct_messages_conv_idx
	ON direct_messages (conv_low, conv_high, created_at, seq);
`

const insertMessage = `
	INSERT INTO direct_messages (id, conv_low, conv_high, sender_id, receiver_id, content, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7::timestamptz, now()))
	RETURNING seq, created_at
`

const selectHistory = `
	SELECT id, sender_id, receiver_id, content, created_at, seq
	FROM direct_messages
	WHERE conv_low = $1 AND conv_high = $2
	ORDER BY created_at ASC, seq ASC
`

const selectHistoryPage = `
	SELECT id, sender_id, receiver_id, content, created_at, seq
	FROM direct_messages
	WHERE conv_low = $1 AND conv_high = $2
	  AND (
	    $3::timestamptz IS NULL
	    OR created_at > $3
	    OR (created_at = $3 AND seq > $4)
	  )
	ORDER BY created_at ASC, seq ASC
	LIMIT $5
`
