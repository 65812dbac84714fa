package extractor

import "testing"

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Phone", "phone"},
		{"  Enrolled Since:", "enrolled_since"},
		{"E-mail   Address :", "e-mail_address"},
		{"Fax::", "fax"},
		{"Web\tSite\n", "web_site"},
		{"already_normal", "already_normal"},
		{"Member\u00a0ID\uff1a", "member_id"},
		{"\uff26ax", "fax"},
		{":", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := NormalizeKey(c.in); got != c.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeKey_Idempotent(t *testing.T) {
	inputs := []string{
		"Phone", "a :  :", "Member  Since:", " x: y :", "ÉTAT  Civil:", "a::b::", "::", "Tel.: ", "Ｅｍａｉｌ：", "Since\u00a0:",
	}
	for _, in := range inputs {
		once := NormalizeKey(in)
		if twice := NormalizeKey(once); twice != once {
			t.Errorf("not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}
