package aggregate

import "testing"

func TestPointID_Deterministic(t *testing.T) {
	a := PointID("sales", KindTotalByProduct, "espresso")
	b := PointID("sales", KindTotalByProduct, "espresso")
	if a != b {
		t.Errorf("point id not stable: %q vs %q", a, b)
	}
	if a != "sales:total-by-product:espresso" {
		t.Errorf("unexpected point id %q", a)
	}
}

func TestSubjectID_Normalization(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Espresso", "espresso"},
		{"  Caffè Latte ", "caff-latte"},
		{"Iced Tea (Large)", "iced-tea-large"},
		{"ESPRESSO", "espresso"},
		{"double--dash", "double-dash"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := SubjectID(tc.in); got != tc.want {
			t.Errorf("SubjectID(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSubjectID_SameSubjectSamePoint(t *testing.T) {
	variants := []string{"Espresso", "espresso", " ESPRESSO "}
	want := PointID("src", KindTotalByProduct, SubjectID(variants[0]))
	for _, v := range variants {
		got := PointID("src", KindTotalByProduct, SubjectID(v))
		if got != want {
			t.Errorf("variant %q maps to %q, want %q", v, got, want)
		}
	}
}

func TestKind_IsValid(t *testing.T) {
	for _, k := range All() {
		if !k.IsValid() {
			t.Errorf("kind %q should be valid", k)
		}
	}
	if Kind("total-by-unicorn").IsValid() {
		t.Error("unknown kind should be invalid")
	}
	if Kind("").IsValid() {
		t.Error("empty kind should be invalid")
	}
}

func TestKind_Function(t *testing.T) {
	cases := map[Kind]Function{
		KindTotalByProduct:        FuncSum,
		KindAveragePriceByProduct: FuncAvg,
		KindCountByProduct:        FuncCount,
		KindTotalByCategory:       FuncSum,
		KindCountByCategory:       FuncCount,
		KindTotalByDate:           FuncSum,
	}
	for k, want := range cases {
		if got := k.Function(); got != want {
			t.Errorf("%q function: got %q, want %q", k, got, want)
		}
	}
}

func TestKind_DescribeFixedTemplates(t *testing.T) {
	got := KindTotalByProduct.Describe("espresso", 1250)
	want := "The total sales of espresso is 1250.00."
	if got != want {
		t.Errorf("describe: got %q, want %q", got, want)
	}

	got = KindCountByCategory.Describe("beverages", 3)
	want = "There are 3 records in the beverages category."
	if got != want {
		t.Errorf("describe: got %q, want %q", got, want)
	}
}

func TestAggregationID(t *testing.T) {
	a := Aggregation{SourceID: "sales", Kind: KindTotalByProduct, SubjectID: "espresso"}
	if a.ID() != "sales:total-by-product:espresso" {
		t.Errorf("unexpected id %q", a.ID())
	}
}
