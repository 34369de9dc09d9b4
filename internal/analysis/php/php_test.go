package php_test

import (
	"context"
	"testing"

	"github.com/garagon/sifter/internal/analysis"
	"github.com/garagon/sifter/internal/analysis/php"
	"github.com/garagon/sifter/internal/symbols"
	"github.com/garagon/sifter/internal/types"
	"github.com/stretchr/testify/require"
)

func source(rel, content string) *analysis.Source {
	return &analysis.Source{Path: rel, RelPath: rel, Content: []byte(content)}
}

func table(t *testing.T, e *php.Engine, srcs ...*analysis.Source) *symbols.Table {
	t.Helper()
	b := symbols.NewBuilder()
	for _, s := range srcs {
		decls, err := e.Parse(context.Background(), s)
		require.NoError(t, err)
		b.Add(decls...)
	}
	return b.Freeze()
}

func categories(issues []types.Issue) []string {
	var out []string
	for _, i := range issues {
		out = append(out, i.Category)
	}
	return out
}

func TestParseDeclarations(t *testing.T) {
	e := php.New(analysis.Options{})
	src := source("core/modules/file/tests/file_test/src/Form/FileTestForm.php", `<?php

namespace Drupal\file_test\Form;

use Drupal\Core\Form\FormBase;

const LIMIT = 5;

function file_test_helper() {}

interface UploadInterface {}

trait UploadTrait {}

class FileTestForm extends FormBase {
  public function getFormId() {
    return '_file_test_form';
  }
}
`)
	decls, err := e.Parse(context.Background(), src)
	require.NoError(t, err)

	got := map[string]symbols.Kind{}
	for _, d := range decls {
		got[d.Name] = d.Kind
		require.Equal(t, src.RelPath, d.File)
	}
	require.Equal(t, map[string]symbols.Kind{
		`Drupal\file_test\Form\LIMIT`:            symbols.KindConstant,
		`Drupal\file_test\Form\file_test_helper`: symbols.KindFunction,
		`Drupal\file_test\Form\UploadInterface`:  symbols.KindInterface,
		`Drupal\file_test\Form\UploadTrait`:      symbols.KindTrait,
		`Drupal\file_test\Form\FileTestForm`:     symbols.KindClass,
	}, got)

	for _, d := range decls {
		if d.Kind == symbols.KindClass {
			require.Equal(t, 15, d.Line)
		}
	}
}

func TestParseBracedNamespaces(t *testing.T) {
	e := php.New(analysis.Options{})
	decls, err := e.Parse(context.Background(), source("a.php", `<?php
namespace App\One {
  class Foo {}
}
namespace {
  function global_helper() {}
}
`))
	require.NoError(t, err)
	require.Len(t, decls, 2)
	require.Equal(t, `App\One\Foo`, decls[0].Name)
	require.Equal(t, `global_helper`, decls[1].Name)
}

func TestParseSkipsNestedDeclarations(t *testing.T) {
	e := php.New(analysis.Options{})
	decls, err := e.Parse(context.Background(), source("a.php", `<?php
if (!function_exists('drupal_helper')) {
  function drupal_helper() {}
}
`))
	require.NoError(t, err)
	require.Empty(t, decls)
}

func TestAnalyzeUndeclared(t *testing.T) {
	e := php.New(analysis.Options{})
	base := source("base.php", `<?php
namespace App\Base;
abstract class FormBase {}
interface FormInterface {}
`)
	form := source("form.php", `<?php
namespace App\Form;

use App\Base\FormBase;
use App\Base\FormInterface as FI;

class UploadForm extends FormBase implements FI, \App\Contracts\Missing {
  public function build() {
    $helper = new Helper();
    $e = new \Exception('global');
    return new self();
  }
}

class Orphan extends \App\Gone\Parent_ {}
`)
	tbl := table(t, e, base, form)

	issues, err := e.Analyze(context.Background(), form, tbl)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		php.CategoryUndeclaredInterface,
		php.CategoryUndeclaredClassMethod,
		php.CategoryUndeclaredExtended,
	}, categories(issues))

	for _, is := range issues {
		require.Equal(t, "form.php", is.File)
		require.Equal(t, types.SeverityCritical, is.Severity)
		switch is.Category {
		case php.CategoryUndeclaredInterface:
			require.Contains(t, is.Message, `\App\Contracts\Missing`)
			require.Equal(t, 7, is.Line)
		case php.CategoryUndeclaredClassMethod:
			require.Contains(t, is.Message, `\App\Form\Helper`)
			require.Equal(t, 9, is.Line)
		case php.CategoryUndeclaredExtended:
			require.Contains(t, is.Message, `\App\Gone\Parent_`)
			require.Equal(t, 15, is.Line)
		}
	}
}

func TestAnalyzeQuickModeSkipsBodies(t *testing.T) {
	e := php.New(analysis.Options{Toggles: map[string]bool{"quick_mode": true}})
	src := source("a.php", `<?php
namespace App;
function make() {
  return new Missing();
}
`)
	issues, err := e.Analyze(context.Background(), src, table(t, e, src))
	require.NoError(t, err)
	require.Empty(t, issues)
}

func TestAnalyzeGlobalNamesNotChecked(t *testing.T) {
	e := php.New(analysis.Options{})
	src := source("a.php", `<?php
class Local extends ArrayObject implements Countable {}
$x = new SplObjectStorage();
`)
	issues, err := e.Analyze(context.Background(), src, table(t, e, src))
	require.NoError(t, err)
	require.Empty(t, issues)
}

func TestAnalyzeRedefinition(t *testing.T) {
	e := php.New(analysis.Options{})
	a := source("a.php", "<?php\nnamespace App;\nclass Foo {}\nfunction bar() {}\n")
	b := source("b.php", "<?php\nnamespace App;\nclass Foo {}\nfunction bar() {}\n")
	tbl := table(t, e, b, a)

	issues, err := e.Analyze(context.Background(), a, tbl)
	require.NoError(t, err)
	require.Empty(t, issues)

	issues, err = e.Analyze(context.Background(), b, tbl)
	require.NoError(t, err)
	require.Equal(t, []string{php.CategoryRedefineClass, php.CategoryRedefineFunction}, categories(issues))
	require.Equal(t, 3, issues[0].Line)
	require.Equal(t, types.SeverityNormal, issues[0].Severity)
	require.Contains(t, issues[0].Message, "previously defined at a.php:3")
}

func TestAnalyzeSyntaxError(t *testing.T) {
	e := php.New(analysis.Options{})
	src := source("broken.php", "<?php\nclass {\n  public function (\n")
	issues, err := e.Analyze(context.Background(), src, table(t, e, src))
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, php.CategorySyntaxError, issues[0].Category)
	require.Equal(t, types.SeverityCritical, issues[0].Severity)
	require.Contains(t, issues[0].Message, "syntax error")
}

func TestAnalyzeEmptyFile(t *testing.T) {
	e := php.New(analysis.Options{})
	for _, content := range []string{"", "  \n\t\n"} {
		src := source("empty.php", content)
		decls, err := e.Parse(context.Background(), src)
		require.NoError(t, err)
		require.Empty(t, decls)

		issues, err := e.Analyze(context.Background(), src, nil)
		require.NoError(t, err)
		require.Len(t, issues, 1)
		require.Equal(t, php.CategoryEmptyFile, issues[0].Category)
		require.Equal(t, types.SeverityLow, issues[0].Severity)
	}
}

func TestCategoriesHaveValidSeverities(t *testing.T) {
	for name, sev := range php.Categories {
		require.True(t, sev.Valid(), name)
	}
}
