package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE automations (
				id TEXT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('active', 'paused', 'draft')),
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				allow_reactivation BOOLEAN NOT NULL DEFAULT false,
				block_on_open_chat BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automations_status ON automations(status);
			CREATE INDEX idx_automations_nodes ON automations USING GIN (nodes jsonb_path_ops);

			CREATE TABLE automation_node_stats (
				automation_id TEXT NOT NULL REFERENCES automations(id) ON DELETE CASCADE,
				node_id TEXT NOT NULL,
				total BIGINT NOT NULL DEFAULT 0,
				success BIGINT NOT NULL DEFAULT 0,
				error BIGINT NOT NULL DEFAULT 0,
				PRIMARY KEY (automation_id, node_id)
			);

			CREATE TABLE contacts (
				id TEXT PRIMARY KEY,
				name VARCHAR(255) NOT NULL DEFAULT '',
				phone VARCHAR(50) NOT NULL DEFAULT '',
				tags TEXT[] NOT NULL DEFAULT '{}',
				crm_board_id TEXT NOT NULL DEFAULT '',
				crm_stage_id TEXT NOT NULL DEFAULT '',
				window_open BOOLEAN NOT NULL DEFAULT false,
				opted_out BOOLEAN NOT NULL DEFAULT false,
				fields JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE deferred_tasks (
				id TEXT PRIMARY KEY,
				automation_id TEXT NOT NULL,
				contact_id TEXT NOT NULL,
				resume_node_id TEXT NOT NULL,
				fire_at TIMESTAMP WITH TIME ZONE NOT NULL,
				context JSONB NOT NULL DEFAULT '{}',
				connection_id TEXT NOT NULL DEFAULT '',
				status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'processing', 'processed', 'failed')),
				error TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_deferred_tasks_due ON deferred_tasks(status, fire_at);
		`,
		2: `
			CREATE TABLE crm_boards (
				id TEXT PRIMARY KEY,
				name VARCHAR(255) NOT NULL
			);

			CREATE TABLE crm_stages (
				id TEXT PRIMARY KEY,
				board_id TEXT NOT NULL REFERENCES crm_boards(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				tags TEXT[] NOT NULL DEFAULT '{}',
				position INTEGER NOT NULL DEFAULT 0
			);

			CREATE TABLE templates (
				id TEXT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				language VARCHAR(20) NOT NULL,
				category VARCHAR(50) NOT NULL DEFAULT '',
				status VARCHAR(20) NOT NULL
			);

			CREATE TABLE connections (
				id TEXT PRIMARY KEY,
				name VARCHAR(255) NOT NULL DEFAULT '',
				phone_number_id TEXT NOT NULL,
				access_token TEXT NOT NULL,
				api_version VARCHAR(20) NOT NULL DEFAULT '',
				active BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE messages (
				id TEXT PRIMARY KEY,
				contact_id TEXT NOT NULL,
				connection_id TEXT NOT NULL DEFAULT '',
				automation_id TEXT NOT NULL DEFAULT '',
				external_id TEXT NOT NULL DEFAULT '',
				direction VARCHAR(20) NOT NULL,
				type VARCHAR(20) NOT NULL,
				content TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_messages_contact ON messages(contact_id, created_at);

			CREATE TABLE enrollments (
				id TEXT PRIMARY KEY,
				automation_id TEXT NOT NULL,
				contact_id TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (automation_id, contact_id)
			);
		`,
	}
}
