package symbols_test

import (
	"testing"

	"github.com/garagon/sifter/internal/symbols"
	"github.com/stretchr/testify/require"
)

func TestTableLookup(t *testing.T) {
	b := symbols.NewBuilder()
	b.Add(
		symbols.Declaration{Kind: symbols.KindClass, Name: `Drupal\Core\Form\FormBase`, File: "core/lib/Drupal/Core/Form/FormBase.php", Line: 20},
		symbols.Declaration{Kind: symbols.KindInterface, Name: `Drupal\Core\Form\FormInterface`, File: "core/lib/Drupal/Core/Form/FormInterface.php", Line: 10},
		symbols.Declaration{Kind: symbols.KindFunction, Name: `file_save_upload`, File: "core/modules/file/file.module", Line: 800},
		symbols.Declaration{Kind: symbols.KindConstant, Name: `Drupal\VERSION`, File: "core/lib/Drupal.php", Line: 5},
	)
	table := b.Freeze()
	require.Equal(t, 4, table.Len())

	d, ok := table.Lookup(symbols.GroupClassLike, `\drupal\core\form\formbase`)
	require.True(t, ok)
	require.Equal(t, 20, d.Line)

	require.True(t, table.Has(symbols.GroupClassLike, `Drupal\Core\Form\FormInterface`))
	require.True(t, table.Has(symbols.GroupFunction, `FILE_SAVE_UPLOAD`))
	require.False(t, table.Has(symbols.GroupClassLike, `file_save_upload`))

	require.True(t, table.Has(symbols.GroupConstant, `Drupal\VERSION`))
	require.False(t, table.Has(symbols.GroupConstant, `drupal\version`))
}

func TestDeclarationsSortedRegardlessOfInsertOrder(t *testing.T) {
	a := symbols.Declaration{Kind: symbols.KindClass, Name: `App\Foo`, File: "a.php", Line: 3}
	b := symbols.Declaration{Kind: symbols.KindTrait, Name: `App\Foo`, File: "b.php", Line: 1}
	c := symbols.Declaration{Kind: symbols.KindClass, Name: `App\Foo`, File: "a.php", Line: 40}

	b1 := symbols.NewBuilder()
	b1.Add(c, b, a)
	b2 := symbols.NewBuilder()
	b2.Add(a)
	b2.Add(b)
	b2.Add(c)

	want := []symbols.Declaration{a, c, b}
	require.Equal(t, want, b1.Freeze().Declarations(symbols.GroupClassLike, `App\Foo`))
	require.Equal(t, want, b2.Freeze().Declarations(symbols.GroupClassLike, `app\foo`))
}

func TestAddAfterFreezePanics(t *testing.T) {
	b := symbols.NewBuilder()
	b.Freeze()
	require.Panics(t, func() {
		b.Add(symbols.Declaration{Kind: symbols.KindFunction, Name: "f"})
	})
}

func TestNilTable(t *testing.T) {
	var table *symbols.Table
	require.False(t, table.Has(symbols.GroupClassLike, "X"))
	require.Nil(t, table.Declarations(symbols.GroupFunction, "f"))
	require.Equal(t, 0, table.Len())
}

func TestSort(t *testing.T) {
	ds := []symbols.Declaration{
		{Name: "b", File: "x.php", Line: 2},
		{Name: "a", File: "x.php", Line: 2},
		{Name: "z", File: "a.php", Line: 9},
	}
	symbols.Sort(ds)
	require.Equal(t, "z", ds[0].Name)
	require.Equal(t, "a", ds[1].Name)
	require.Equal(t, "b", ds[2].Name)
}
