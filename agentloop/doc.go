// Package agentloop runs a retrieval-augmented, tool-calling conversation
// turn against a language model.
//
// A run retrieves context for the query from a similarity index, builds a
// system prompt around it and then alternates between model invocations and
// tool execution until the model answers in plain text or the turn budget is
// spent. Progress is reported as a stream of typed events.
//
// # Architecture
//
//   - Agent: owns the index, the tool registry and the execution environment,
//     and starts one producer goroutine per Run.
//   - Transcript: the ordered message list of one run, keeping every tool
//     result paired with a call of the preceding assistant turn.
//   - ToolRegistry: schema-validated dispatch of read_file, write_file and
//     list_files.
//   - ExecutionEnvironment: the filesystem the tools act on, confined to a
//     workspace root.
//   - Stream: an unbuffered channel of Events closed when the run ends.
//
// # Quick Start
//
//	agent, err := agentloop.NewAgent(agentloop.Options{
//	    Model:         client,
//	    Embedder:      embedder,
//	    IndexPath:     "index.json",
//	    WorkspaceRoot: "/path/to/project",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stream := agent.Run(ctx, "Where is the config loaded?", nil)
//	if err := agentloop.WriteNDJSON(os.Stdout, stream.Events()); err != nil {
//	    log.Fatal(err)
//	}
//	history := stream.History()
package agentloop
