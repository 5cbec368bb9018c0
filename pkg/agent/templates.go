package agent

// diagnosisTask is the analysis instruction appended to the incident context.
const diagnosisTask = `## Your Task

You are an expert incident responder. Analyze the logs and stack traces above, then:

1. **Identify the root cause** of this incident. Be specific about which code path is failing and why.
2. **Locate the affected source files** in this repository. Use the Glob and Grep tools to find them.
3. **Read the relevant code** to understand the context around the failing lines.
4. **Propose a specific fix** and show exactly what code changes are needed.`

// diagnosisOutputFormat fixes the section layout ParseDiagnosis reads.
const diagnosisOutputFormat = "## Required Output Format\n\n" +
	"You MUST structure your final response EXACTLY as follows (use these exact headers):\n\n" +
	"### ROOT_CAUSE\n" +
	"One paragraph explaining the root cause.\n\n" +
	"### AFFECTED_FILES\n" +
	"- path/to/file1.go\n" +
	"- path/to/file2.go\n\n" +
	"### PROPOSED_CHANGES\n" +
	"For each file that needs changes:\n\n" +
	"#### FILE: path/to/file.go\n" +
	"**Explanation**: Why this change fixes the issue.\n" +
	"```diff\n" +
	"- old line of code\n" +
	"+ new line of code\n" +
	"```\n\n" +
	"### RISK_ASSESSMENT\n" +
	"LOW | MEDIUM | HIGH\n" +
	"Justification for the risk level.\n\n" +
	"### ROLLBACK_PLAN\n" +
	"How to revert if the fix causes issues.\n\n" +
	"### CONFIDENCE\n" +
	"A number between 0 and 1 representing your confidence in this diagnosis.\n"

// fixTask restricts the fix pass to the previously proposed changes.
const fixTask = `## Your Task

Apply the proposed changes from the diagnosis above. For each file:
1. Read the current file content
2. Make the exact changes proposed
3. Verify the changes look correct

Do NOT make any changes beyond what was proposed in the diagnosis. Be precise.
`
