package pattern_test

import (
	"context"
	"testing"

	"github.com/garagon/sifter/internal/analysis"
	"github.com/garagon/sifter/internal/analysis/pattern"
	"github.com/garagon/sifter/internal/rules"
	"github.com/garagon/sifter/internal/types"
	"github.com/stretchr/testify/require"
)

func compileTestRule(t *testing.T, raw rules.RawRule) *rules.CompiledRule {
	t.Helper()
	cr, err := rules.Compile(raw)
	require.NoError(t, err)
	return cr
}

func TestMatcherMatchAny(t *testing.T) {
	rule := compileTestRule(t, rules.RawRule{
		ID:        "PhanPluginTest",
		Name:      "Test",
		Severity:  "normal",
		MatchMode: "any",
		Patterns: []rules.RawPattern{
			{Type: rules.PatternRegex, Value: `\bdrupal_set_message\(`},
			{Type: rules.PatternContains, Value: "DEPRECATED_CALL"},
		},
	})
	matcher := pattern.NewMatcher([]*rules.CompiledRule{rule})

	src := &analysis.Source{
		RelPath: "core/modules/file/file.module",
		Content: []byte("<?php\n\ndrupal_set_message('x');\n$y = deprecated_call();\n"),
	}
	issues, err := matcher.Analyze(context.Background(), src, nil)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	require.Equal(t, "PhanPluginTest", issues[0].Category)
	require.Equal(t, types.SeverityNormal, issues[0].Severity)
	require.Equal(t, "core/modules/file/file.module", issues[0].File)
	require.Equal(t, 3, issues[0].Line)
	require.Equal(t, 4, issues[1].Line)
}

func TestMatcherOneIssuePerLine(t *testing.T) {
	rule := compileTestRule(t, rules.RawRule{
		ID:       "PhanPluginTest",
		Severity: "low",
		Patterns: []rules.RawPattern{
			{Type: rules.PatternContains, Value: "foo"},
			{Type: rules.PatternContains, Value: "bar"},
		},
	})
	matcher := pattern.NewMatcher([]*rules.CompiledRule{rule})

	src := &analysis.Source{RelPath: "a.php", Content: []byte("foo bar foo\n")}
	issues, err := matcher.Analyze(context.Background(), src, nil)
	require.NoError(t, err)
	require.Len(t, issues, 1)
}

func TestMatcherMatchAll(t *testing.T) {
	rule := compileTestRule(t, rules.RawRule{
		ID:        "PhanPluginBoth",
		Severity:  "critical",
		MatchMode: "all",
		Patterns: []rules.RawPattern{
			{Type: rules.PatternContains, Value: "$_GET"},
			{Type: rules.PatternContains, Value: "db_query"},
		},
	})
	matcher := pattern.NewMatcher([]*rules.CompiledRule{rule})

	src := &analysis.Source{RelPath: "a.php", Content: []byte("<?php\n$id = $_GET['id'];\ndb_query($id);\n")}
	issues, err := matcher.Analyze(context.Background(), src, nil)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, 2, issues[0].Line)

	src2 := &analysis.Source{RelPath: "a.php", Content: []byte("<?php\ndb_query($id);\n")}
	issues, err = matcher.Analyze(context.Background(), src2, nil)
	require.NoError(t, err)
	require.Empty(t, issues)
}

func TestMatcherExcludePatterns(t *testing.T) {
	rule := compileTestRule(t, rules.RawRule{
		ID:              "PhanPluginRemoveDebugCall",
		Severity:        "normal",
		Patterns:        []rules.RawPattern{{Type: rules.PatternRegex, Value: `var_dump\(`}},
		ExcludePatterns: []rules.RawPattern{{Type: rules.PatternRegex, Value: `^\s*//`}},
	})
	matcher := pattern.NewMatcher([]*rules.CompiledRule{rule})

	src := &analysis.Source{RelPath: "a.php", Content: []byte("<?php\n// var_dump($a);\nvar_dump($b);\n")}
	issues, err := matcher.Analyze(context.Background(), src, nil)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, 3, issues[0].Line)
}

func TestMatcherTargetFilter(t *testing.T) {
	rule := compileTestRule(t, rules.RawRule{
		ID:       "PhanPluginModuleOnly",
		Severity: "low",
		Targets:  []string{"**/*.module"},
		Patterns: []rules.RawPattern{{Type: rules.PatternContains, Value: "trigger"}},
	})
	matcher := pattern.NewMatcher([]*rules.CompiledRule{rule})

	mod := &analysis.Source{RelPath: "core/modules/file/file.module", Content: []byte("trigger")}
	issues, _ := matcher.Analyze(context.Background(), mod, nil)
	require.Len(t, issues, 1)

	php := &analysis.Source{RelPath: "core/lib/File.php", Content: []byte("trigger")}
	issues, _ = matcher.Analyze(context.Background(), php, nil)
	require.Empty(t, issues)
}

func TestMatcherNonASCIIContent(t *testing.T) {
	rule := compileTestRule(t, rules.RawRule{
		ID:       "PhanPluginTest",
		Severity: "low",
		Patterns: []rules.RawPattern{{Type: rules.PatternContains, Value: "needle"}},
	})
	matcher := pattern.NewMatcher([]*rules.CompiledRule{rule})

	src := &analysis.Source{RelPath: "a.php", Content: []byte("İİİİ\nNEEDLE\n")}
	issues, err := matcher.Analyze(context.Background(), src, nil)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, 2, issues[0].Line)
}

func TestMatcherContextCancellation(t *testing.T) {
	rule := compileTestRule(t, rules.RawRule{
		ID:       "PhanPluginTest",
		Severity: "low",
		Patterns: []rules.RawPattern{{Type: rules.PatternContains, Value: "trigger"}},
	})
	matcher := pattern.NewMatcher([]*rules.CompiledRule{rule})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := matcher.Analyze(ctx, &analysis.Source{RelPath: "a.php", Content: []byte("trigger")}, nil)
	require.Error(t, err)
}

func TestBuiltinPluginsOnDrupalCode(t *testing.T) {
	compiled, err := rules.Load(t.TempDir(), []string{"DollarDollarPlugin", "RemoveDebugStatementPlugin", "UnsafeCodePlugin"})
	require.NoError(t, err)
	matcher := pattern.NewMatcher(compiled)

	src := &analysis.Source{RelPath: "modules/custom/demo/demo.module", Content: []byte(`<?php
function demo_form_alter(&$form, $form_state) {
  $name = 'title';
  $$name = 'x';
  dpm($form);
  // var_dump($form);
  $query->execute();
  eval($code);
}
`)}
	issues, err := matcher.Analyze(context.Background(), src, nil)
	require.NoError(t, err)

	got := map[string]int{}
	for _, i := range issues {
		got[i.Category] = i.Line
	}
	require.Equal(t, map[string]int{
		"PhanPluginDollarDollar":    4,
		"PhanPluginRemoveDebugCall": 5,
		"PhanPluginUnsafeEval":      8,
	}, got)
}

func BenchmarkMatcher(b *testing.B) {
	var content []byte
	for range 1000 {
		content = append(content, []byte("$this->entityTypeManager->getStorage('node')->load($nid);\n")...)
	}
	content = append(content, []byte("var_dump($node);\n")...)

	compiled, err := rules.Load(b.TempDir(), []string{"DollarDollarPlugin", "RemoveDebugStatementPlugin", "UnsafeCodePlugin"})
	require.NoError(b, err)
	matcher := pattern.NewMatcher(compiled)
	src := &analysis.Source{RelPath: "a.php", Content: content}

	b.ResetTimer()
	for range b.N {
		_, _ = matcher.Analyze(context.Background(), src, nil)
	}
}
