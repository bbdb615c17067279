package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Execution snapshots: the encoded record plus the columns used to filter and sort
			CREATE TABLE executions (
				project VARCHAR(255) NOT NULL,
				domain VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				phase SMALLINT NOT NULL,
				launch_plan VARCHAR(255) NOT NULL,
				principal VARCHAR(255) NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE,
				updated_at TIMESTAMP WITH TIME ZONE,
				payload BYTEA NOT NULL,
				PRIMARY KEY (project, domain, name)
			);

			CREATE INDEX idx_executions_phase ON executions(phase);
			CREATE INDEX idx_executions_started_at ON executions(started_at);
			CREATE INDEX idx_executions_created_at ON executions(created_at);
		`,
		2: `
			-- Task execution snapshots, keyed by the full task execution identifier
			CREATE TABLE task_executions (
				project VARCHAR(255) NOT NULL,
				domain VARCHAR(255) NOT NULL,
				execution_name VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				task_project VARCHAR(255) NOT NULL,
				task_domain VARCHAR(255) NOT NULL,
				task_name VARCHAR(255) NOT NULL,
				task_version VARCHAR(255) NOT NULL,
				retry_attempt BIGINT NOT NULL,
				phase SMALLINT NOT NULL,
				payload BYTEA NOT NULL,
				PRIMARY KEY (project, domain, execution_name, node_id, task_project, task_domain, task_name, task_version, retry_attempt)
			);

			CREATE INDEX idx_task_executions_execution ON task_executions(project, domain, execution_name);
		`,
		3: `
			-- Org becomes part of execution identity; '' is the default org
			ALTER TABLE executions ADD COLUMN org VARCHAR(255) NOT NULL DEFAULT '';
			ALTER TABLE executions DROP CONSTRAINT executions_pkey;
			ALTER TABLE executions ADD PRIMARY KEY (org, project, domain, name);

			ALTER TABLE task_executions ADD COLUMN org VARCHAR(255) NOT NULL DEFAULT '';
			ALTER TABLE task_executions ADD COLUMN task_org VARCHAR(255) NOT NULL DEFAULT '';
			ALTER TABLE task_executions DROP CONSTRAINT task_executions_pkey;
			ALTER TABLE task_executions ADD PRIMARY KEY (org, project, domain, execution_name, node_id,
				task_org, task_project, task_domain, task_name, task_version, retry_attempt);

			DROP INDEX idx_task_executions_execution;
			CREATE INDEX idx_task_executions_execution ON task_executions(org, project, domain, execution_name);
		`,
	}
}
