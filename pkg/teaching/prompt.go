package teaching

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"preset-teaching-be/pkg/llm"
	"preset-teaching-be/pkg/preset"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SystemPrompt explains the envelope format to the generator.
const SystemPrompt = `You maintain the behavior preset of a conversational agent.
You receive a <preset_teaching_request> with the editable nodes of the preset and a batch of recent conversation.
Decide whether the conversation teaches the agent something that should change one of the listed nodes.

Reply with exactly one block and nothing else:

<preset_teaching_plan decision="update|no_change">
  <edit>
    <type>update|add|delete|toggle</type>
    <target_index>node index from the request</target_index>
    <target_id>node id from the request</target_id>
    <new_value>the complete new value</new_value>
    <reason>short rationale</reason>
  </edit>
</preset_teaching_plan>

Rules:
- Always give target_index, copied exactly from the index attribute of the node.
- Only target nodes that are listed. Never invent ids or paths.
- new_value replaces the whole value; match the node type (string, number or boolean).
- toggle flips a boolean node and needs no new_value.
- If nothing should change, reply <preset_teaching_plan decision="no_change"></preset_teaching_plan>.`

// Example is a request/plan pair from an earlier successful round.
type Example struct {
	InputXML string
	PlanXML  string
}

// BuildRequestXML renders the outbound envelope for ix and the batched text.
func BuildRequestXML(ix *preset.Index, conversation string) string {
	var b bytes.Buffer
	b.WriteString("<preset_teaching_request>\n  <nodes>\n")
	for _, n := range ix.Nodes {
		fmt.Fprintf(&b, `    <node index="%d" id="%s" kind="%s" path="%s" type="%s">`,
			n.Position, escape(n.ID), n.Kind, escape(n.Path), n.ValueType)
		b.WriteByte('\n')
		if n.Title != "" {
			b.WriteString("      <title>" + escape(n.Title) + "</title>\n")
		}
		if n.Preview != "" {
			b.WriteString("      <preview>" + escape(n.Preview) + "</preview>\n")
		}
		b.WriteString("    </node>\n")
	}
	b.WriteString("  </nodes>\n  <conversation>\n")
	b.WriteString(escape(strings.TrimSpace(conversation)))
	b.WriteString("\n  </conversation>\n</preset_teaching_request>")
	return b.String()
}

// RenderPlanXML writes plan back in canonical form, used to store examples.
func RenderPlanXML(plan *Plan) string {
	if plan == nil || plan.Empty() {
		return `<preset_teaching_plan decision="no_change"></preset_teaching_plan>`
	}
	var b bytes.Buffer
	b.WriteString(`<preset_teaching_plan decision="update">` + "\n")
	for _, e := range plan.Edits {
		b.WriteString("  <edit>\n")
		b.WriteString("    <type>" + string(e.Operation.Op) + "</type>\n")
		b.WriteString("    <target_index>" + strconv.Itoa(e.Node.Position) + "</target_index>\n")
		b.WriteString("    <target_id>" + escape(e.Node.ID) + "</target_id>\n")
		if e.Operation.Value != nil {
			b.WriteString("    <new_value>" + escape(preset.FormatScalar(e.Operation.Value)) + "</new_value>\n")
		}
		if e.Operation.Reason != "" {
			b.WriteString("    <reason>" + escape(e.Operation.Reason) + "</reason>\n")
		}
		b.WriteString("  </edit>\n")
	}
	b.WriteString("</preset_teaching_plan>")
	return b.String()
}

// BuildMessages orders the conversation: system prompt, few-shot pairs, request.
func BuildMessages(systemContext string, examples []Example, requestXML string) []llm.Message {
	system := SystemPrompt
	if ctx := strings.TrimSpace(systemContext); ctx != "" {
		system += "\n\nAgent context:\n" + ctx
	}

	messages := make([]llm.Message, 0, 2+2*len(examples))
	messages = append(messages, llm.Message{Role: RoleSystem, Content: system})
	for _, ex := range examples {
		if ex.InputXML == "" || ex.PlanXML == "" {
			continue
		}
		messages = append(messages,
			llm.Message{Role: RoleUser, Content: ex.InputXML},
			llm.Message{Role: RoleAssistant, Content: ex.PlanXML},
		)
	}
	messages = append(messages, llm.Message{Role: RoleUser, Content: requestXML})
	return messages
}

// CorrectionMessage asks the generator to fix a reply that failed to parse.
func CorrectionMessage(err error) string {
	return "Your previous reply could not be applied: " + err.Error() + ".\n" +
		"Reply again with exactly one <preset_teaching_plan> block. " +
		"Use target_index values copied from the index attribute of the listed nodes, " +
		`or decision="no_change" if nothing should change.`
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

// escape keeps newlines intact so batched conversation stays readable.
func escape(s string) string {
	return xmlEscaper.Replace(s)
}
