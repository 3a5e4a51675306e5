package catalog

// Operations in catalog order. The order is what callers see in tools/list.
const (
	RecordOutcome Operation = iota
	RecommendAgent
	DetectPatterns
	GetLearningSummary
	ExecuteTask
	GetSystemStatus
	RegisterSkill
	StartABTest
	PromoteSkill
	ExecuteGoal
	GetGoalProgress
	SynthesizeContext
	ProposeModification
	ApplyModification
	GetImprovementHistory

	operationCount
)

// Count is the number of operations in the catalog.
const Count = int(operationCount)

// ModificationTypes is the closed set accepted by agi_propose_modification.
var ModificationTypes = []string{"algorithm_improve", "data_structure", "interface", "optimization"}

var descriptors = [operationCount]Descriptor{
	// --- Learning ---

	RecordOutcome: {
		Name: "agi_record_outcome",
		Description: "Record a task outcome for meta-learning. " +
			"The learning engine uses recorded outcomes to improve future agent selection.",
		Schema: Schema{Fields: []Field{
			{Name: "task_id", Type: TypeString, Required: true, Description: "Unique task identifier"},
			{Name: "task_type", Type: TypeString, Required: true, Description: "Type of task (e.g. code_generation, analysis)"},
			{Name: "agent_used", Type: TypeString, Required: true, Description: "Name of the agent that executed the task"},
			{Name: "success", Type: TypeBoolean, Required: true, Description: "Whether the task succeeded"},
			{Name: "execution_time_ms", Type: TypeInteger, Required: true, Description: "Execution time in milliseconds"},
			{Name: "quality_score", Type: TypeNumber, Description: "Optional quality score (0.0-1.0)"},
			{Name: "error_message", Type: TypeString, Description: "Error message if the task failed"},
			{Name: "context", Type: TypeObject, Description: "Additional context for the outcome"},
		}},
	},
	RecommendAgent: {
		Name:        "agi_recommend_agent",
		Description: "Get an agent recommendation for a task type based on learned performance, with a confidence score.",
		Schema: Schema{Fields: []Field{
			{Name: "task_type", Type: TypeString, Required: true, Description: "Type of task"},
			{Name: "context", Type: TypeObject, Description: "Optional context for more specific recommendations"},
		}},
	},
	DetectPatterns: {
		Name: "agi_detect_patterns",
		Description: "Detect patterns in recent task executions: success and failure trends, " +
			"agent performance and task characteristics.",
		Schema: Schema{Fields: []Field{
			{Name: "lookback_days", Type: TypeInteger, Default: 7, Description: "Number of days to look back"},
		}},
	},
	GetLearningSummary: {
		Name:        "agi_get_learning_summary",
		Description: "Get a summary of the learning system: total outcomes, success rates, maturity and per-agent performance.",
		Schema:      Schema{},
	},

	// --- Coordination ---

	ExecuteTask: {
		Name: "agi_execute_task",
		Description: "Execute a task using multi-agent coordination. The task is decomposed, " +
			"assigned to specialized agents, executed in parallel and aggregated.",
		Schema: Schema{Fields: []Field{
			{Name: "description", Type: TypeString, Required: true, Description: "Natural language description of the task"},
			{Name: "task_type", Type: TypeString, Default: "general", Description: "Type of task for better agent selection"},
		}},
	},
	GetSystemStatus: {
		Name:        "agi_get_system_status",
		Description: "Get multi-agent coordination status: available agents, active sessions, utilization and health.",
		Schema:      Schema{},
	},

	// --- Skills ---

	RegisterSkill: {
		Name:        "agi_register_skill",
		Description: "Register a new skill version so it can be tracked, A/B tested and promoted.",
		Schema: Schema{Fields: []Field{
			{Name: "skill_name", Type: TypeString, Required: true, Description: "Unique skill name"},
			{Name: "code", Type: TypeString, Required: true, Description: "Skill implementation code"},
			{Name: "description", Type: TypeString, Default: "", Description: "Optional description"},
			{Name: "version", Type: TypeString, Description: "Optional semantic version (next patch version if omitted)"},
		}},
	},
	StartABTest: {
		Name:        "agi_start_ab_test",
		Description: "Start an A/B test between two versions of a skill. Traffic is split according to split_ratio.",
		Schema: Schema{Fields: []Field{
			{Name: "skill_name", Type: TypeString, Required: true, Description: "Skill to test"},
			{Name: "version_a", Type: TypeString, Required: true, Description: "First version"},
			{Name: "version_b", Type: TypeString, Required: true, Description: "Second version"},
			{Name: "split_ratio", Type: TypeNumber, Default: 0.5, Description: "Ratio of traffic sent to version A (0.0-1.0)"},
		}},
	},
	PromoteSkill: {
		Name:        "agi_promote_skill",
		Description: "Promote a skill version to production, making it the active version.",
		Schema: Schema{Fields: []Field{
			{Name: "skill_name", Type: TypeString, Required: true, Description: "Skill name"},
			{Name: "version", Type: TypeString, Required: true, Description: "Version to promote"},
		}},
	},

	// --- Goals ---

	ExecuteGoal: {
		Name: "agi_execute_goal",
		Description: "Parse a natural language goal, decompose it into tasks with estimates " +
			"and prepare it for execution.",
		Schema: Schema{Fields: []Field{
			{Name: "goal_description", Type: TypeString, Required: true, Description: "Natural language goal description"},
			{Name: "context", Type: TypeObject, Description: "Optional context (language, framework, constraints)"},
		}},
	},
	GetGoalProgress: {
		Name:        "agi_get_goal_progress",
		Description: "Get progress on a decomposed goal.",
		Schema: Schema{Fields: []Field{
			{Name: "goal_id", Type: TypeString, Required: true, Description: "Goal identifier returned by agi_execute_goal"},
		}},
	},

	// --- Context ---

	SynthesizeContext: {
		Name: "agi_synthesize_context",
		Description: "Gather context from multiple sources, rank it by relevance to the query " +
			"and compress it to a token budget.",
		Schema: Schema{Fields: []Field{
			{Name: "query", Type: TypeString, Required: true, Description: "What the context is for"},
			{Name: "source_types", Type: TypeArray, Items: TypeString, Description: "Sources to gather from (file, code, memory). All when omitted"},
			{Name: "target_tokens", Type: TypeInteger, Description: "Token budget for the synthesized context"},
		}},
	},

	// --- Self-modification ---

	ProposeModification: {
		Name:        "agi_propose_modification",
		Description: "Propose a code modification. The proposal is checked structurally before it is recorded.",
		Schema: Schema{Fields: []Field{
			{Name: "code_before", Type: TypeString, Required: true, Description: "Original code"},
			{Name: "code_after", Type: TypeString, Required: true, Description: "Modified code"},
			{Name: "modification_type", Type: TypeString, Required: true, Enum: ModificationTypes, Description: "Kind of modification"},
			{Name: "description", Type: TypeString, Required: true, Description: "Description of the modification"},
		}},
	},
	ApplyModification: {
		Name:        "agi_apply_modification",
		Description: "Look up a proposed modification and report its current status.",
		Schema: Schema{Fields: []Field{
			{Name: "modification_id", Type: TypeString, Required: true, Description: "Modification identifier"},
		}},
	},
	GetImprovementHistory: {
		Name:        "agi_get_improvement_history",
		Description: "Get the history of proposed self-modifications, newest first.",
		Schema: Schema{Fields: []Field{
			{Name: "limit", Type: TypeInteger, Default: 10, Description: "Maximum number of records to return"},
		}},
	},
}
