package postgres

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'active', 'archived')),
				version INT NOT NULL DEFAULT 1,
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				variables JSONB,
				business_hours JSONB,
				total_executions INT NOT NULL DEFAULT 0,
				succeeded_executions INT NOT NULL DEFAULT 0,
				failed_executions INT NOT NULL DEFAULT 0,
				last_execution_started TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_organization_id ON workflows(organization_id);
			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);
		`,
		2: `
			CREATE TABLE executions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL,
				organization_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'running', 'suspended', 'completed', 'failed', 'cancelled')),
				current_node_id VARCHAR(255),
				context JSONB NOT NULL,
				claim_token VARCHAR(255) NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				resume_at TIMESTAMP WITH TIME ZONE,
				retry_count INT NOT NULL DEFAULT 0,
				retrying BOOLEAN NOT NULL DEFAULT FALSE,
				error_message TEXT NOT NULL DEFAULT '',
				failed_node_id VARCHAR(255) NOT NULL DEFAULT '',
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_executions_organization_workflow ON executions(organization_id, workflow_id);
			-- The scheduler polls on this pair.
			CREATE INDEX idx_executions_status_resume_at ON executions(status, resume_at);
		`,
		3: `
			CREATE TABLE activities (
				id UUID PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				workflow_id UUID NOT NULL,
				execution_id UUID NOT NULL,
				node_id VARCHAR(255) NOT NULL DEFAULT '',
				action_type VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				error TEXT NOT NULL DEFAULT '',
				kind VARCHAR(50) NOT NULL DEFAULT '',
				attempt INT NOT NULL DEFAULT 0,
				duration_ms BIGINT NOT NULL DEFAULT 0,
				recorded_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_activities_execution_id ON activities(execution_id);
			CREATE INDEX idx_activities_organization_id ON activities(organization_id);
		`,
	}
}
