// Package ux holds the interactive surface of voxsh: the prompters the
// resolver asks questions through, and the text conventions shared by typed
// and spoken input.
//
// Two prompters implement resolve.Prompter:
//
//   - TerminalPrompter: arrow-key menus and editable inputs (promptui), used
//     when stdin and stdout are terminals.
//   - LinePrompter: plain "question [a/b]:" lines, used for pipes and tests.
//     Reads honor context cancellation.
//
// Exit keywords (exit, quit, stop, bye) are matched caselessly and end the
// outer session rather than the current task.
package ux
