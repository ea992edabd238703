// Package testing provides a reusable conformance test suite and benchmark
// suite for engine.Database implementations. Every engine runs the same
// suite from its own package:
//
//	func Test(t *testing.T) {
//		enginetesting.RunEngineTests(t, "BirchDB", func() string {
//			return "plocal:" + filepath.Join(t.TempDir(), "bench")
//		})
//	}
//
// The suite covers the full session lifecycle, concurrent creation and
// schema races, dictionary point operations, ordered range iteration, and
// state visibility across reopened sessions.
package testing
