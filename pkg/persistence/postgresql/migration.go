package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflow_templates (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				industry VARCHAR(50) NOT NULL,
				owner_id VARCHAR(255) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_templates_owner ON workflow_templates(owner_id);
			CREATE INDEX idx_templates_industry ON workflow_templates(industry);

			CREATE TABLE template_tasks (
				template_id UUID NOT NULL REFERENCES workflow_templates(id) ON DELETE CASCADE,
				id UUID NOT NULL,
				name VARCHAR(255) NOT NULL,
				task_type VARCHAR(50) NOT NULL CHECK (task_type IN ('automated', 'hitl_gate', 'conditional')),
				display_order INT NOT NULL,
				config JSONB NOT NULL DEFAULT '{}',
				PRIMARY KEY (template_id, id),
				UNIQUE (template_id, display_order)
			);

			CREATE TABLE leads (
				id UUID PRIMARY KEY,
				owner_id VARCHAR(255) NOT NULL,
				industry VARCHAR(50) NOT NULL,
				name VARCHAR(255) NOT NULL,
				email VARCHAR(255),
				phone VARCHAR(50),
				attributes JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_leads_owner ON leads(owner_id);

			CREATE TABLE workflow_instances (
				id UUID PRIMARY KEY,
				template_id UUID NOT NULL REFERENCES workflow_templates(id),
				lead_id UUID NOT NULL REFERENCES leads(id),
				owner_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'paused', 'awaiting_hitl', 'completed', 'rejected', 'failed')),
				current_task_id UUID,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_instances_owner ON workflow_instances(owner_id);
			CREATE INDEX idx_instances_status ON workflow_instances(status);
			CREATE INDEX idx_instances_pair ON workflow_instances(template_id, lead_id);

			CREATE TABLE task_executions (
				id UUID PRIMARY KEY,
				instance_id UUID NOT NULL REFERENCES workflow_instances(id),
				task_id UUID NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'running', 'completed', 'awaiting_hitl', 'approved', 'rejected', 'failed', 'skipped')),
				output JSONB,
				error TEXT,
				notes TEXT,
				decided_by VARCHAR(255),
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_executions_instance ON task_executions(instance_id);
			CREATE INDEX idx_executions_status ON task_executions(status);
		`,
	}
}
