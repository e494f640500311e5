package research

import "time"

// Prompt templates for the three generation tasks. Each is formatted with the
// current date so the model favors recent information.

const queryWriterInstructions = `Your goal is to generate sophisticated and diverse web search queries. These queries are intended for an advanced automated web research tool capable of analyzing complex results, following links, and synthesizing information.

Instructions:
- Always prefer a single search query, only add another query if the original question requests multiple aspects or elements and one query is not enough.
- Each query should focus on one specific aspect of the original question.
- Don't produce more than %d queries.
- Queries should be diverse, if the topic is broad, generate more than 1 query.
- Don't generate multiple similar queries, 1 is enough.
- Query should ensure that the most current information is gathered. The current date is %s.

Format your response as a JSON object with a "queries" field: a list of objects, each with "query" and "rationale" fields.

Context: %s`

const reflectionInstructions = `You are an expert research assistant analyzing summaries about "%s".

Instructions:
- Identify knowledge gaps or areas that need deeper exploration and generate follow-up queries.
- If provided summaries are sufficient to answer the user's question, don't generate a follow-up query.
- If there is a knowledge gap, generate a follow-up query that would help expand your understanding.
- Focus on technical details, implementation specifics, or emerging trends that weren't fully covered.
- The current date is %s.

Output a JSON object with "is_sufficient", "knowledge_gap" and "follow_up_queries" fields.

Summaries:
%s`

const answerInstructions = `Generate a high-quality answer to the user's question based on the provided summaries.

Instructions:
- The current date is %s.
- You are the final step of a multi-step research process, don't mention that you are the final step.
- You have access to all the information gathered from the previous steps.
- Generate a high-quality answer to the user's question based on the provided summaries and the user's question.
- Include the citation markers from the summaries (e.g. [1], [2]) in your answer where the cited information is used.

User's question:
%s

Summaries:
%s`

func currentDate() string {
	return time.Now().Format("January 2, 2006")
}
