package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/docudump/internal/record"
)

func testOptions(details bool) Options {
	return Options{
		Details:        details,
		PublicGroups:   []string{"Group-4", "Group-5", "Group-7"},
		ReadPermission: "readobject",
		IgnoreTypes: []string{
			"Group", "BulletinBoard", "Bulletin", "Weblog", "WeblogEntry",
			"Event", "Calendar", "Wiki", "WikiPage",
		},
	}
}

func extractOne(t *testing.T, xml string, details bool) *record.Store {
	t.Helper()
	store := record.NewStore()
	require.NoError(t, Extract([]byte(xml), testOptions(details), store))
	return store
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "ab", Sanitize("a\x00\x08b"))
	assert.Equal(t, "a\tb\nc\rd", Sanitize("a\tb\nc\rd"))
	assert.Equal(t, "ok", Sanitize("o\xed\xa0\x80k")) // lone surrogate bytes
	assert.Equal(t, "xy", Sanitize("x￾y"))
}

func TestExtract_CollectionRecord(t *testing.T) {
	store := extractOne(t, `<export>
		<dsobject classname="Collection" handle="Collection-10">
			<props>
				<prop name="title"> Reports </prop>
				<prop name="sort_order">TitleReversed</prop>
				<prop name="create_date">Mon Jan 02 15:04:05 UTC 2006</prop>
			</props>
			<acls>
				<acl principal="Group-4" permissions="readobject,search"/>
			</acls>
			<destinationlinks>
				<owner>User-3</owner>
				<containment>Document-1</containment>
				<containment>Collection-11</containment>
			</destinationlinks>
		</dsobject>
	</export>`, false)

	r, ok := store.Get("Collection-10")
	require.True(t, ok)
	assert.Equal(t, record.KindCollection, r.Kind)
	assert.Equal(t, "Reports", r.Title)
	assert.Equal(t, "TitleReversed", r.SortOrder)
	assert.Equal(t, "User-3", r.Owner)
	assert.False(t, r.Private)
	assert.Equal(t, []string{"Document-1", "Collection-11"}, r.Children)
	assert.Equal(t, 2006, r.CreateDate.Year())
}

func TestExtract_CollectionWithoutPropsUsesIDAsTitle(t *testing.T) {
	store := extractOne(t, `<export>
		<dsobject classname="Collection" handle="Collection-10">
			<acls/>
			<destinationlinks/>
		</dsobject>
	</export>`, false)

	r, _ := store.Get("Collection-10")
	assert.Equal(t, "Collection-10", r.Title)
	assert.Equal(t, "Title", r.SortOrder)
	assert.True(t, r.Private)
}

func TestExtract_VisibilityDerivation(t *testing.T) {
	cases := []struct {
		name    string
		acls    string
		private bool
	}{
		{"public group read", `<acl principal="Group-5" permissions="readobject"/>`, false},
		{"public group no read", `<acl principal="Group-5" permissions="writeobject"/>`, true},
		{"non-public group read", `<acl principal="Group-99" permissions="readobject"/>`, true},
		{"no grants", ``, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := extractOne(t, `<export>
				<dsobject classname="Collection" handle="Collection-1">
					<props><prop name="title">X</prop></props>
					<acls>`+tc.acls+`</acls>
					<destinationlinks/>
				</dsobject>
			</export>`, false)
			r, _ := store.Get("Collection-1")
			assert.Equal(t, tc.private, r.Private)
		})
	}
}

func TestExtract_DocumentSummaryIsStub(t *testing.T) {
	store := extractOne(t, `<export>
		<dsobject classname="Document" handle="Document-1">
			<acls><acl principal="Group-7" permissions="readobject"/></acls>
			<destinationlinks><owner>User-3</owner></destinationlinks>
		</dsobject>
	</export>`, false)

	r, ok := store.Get("Document-1")
	require.True(t, ok)
	assert.False(t, r.Detailed)
	assert.Equal(t, "User-3", r.Owner)
	assert.False(t, r.Private)
	assert.Empty(t, r.ContentFilename)
}

func TestExtract_DocumentDetail(t *testing.T) {
	store := extractOne(t, `<export>
		<dsobject classname="Document" handle="Document-1">
			<props>
				<prop name="title">Quarterly Report</prop>
				<prop name="original_file_name">upload.pdf</prop>
			</props>
			<acls/>
			<destinationlinks><owner>User-3</owner></destinationlinks>
			<versions>
				<dsobject handle="Version-1">
					<renditions>
						<dsobject>
							<props>
								<prop name="size">2048</prop>
								<prop name="create_date">Fri Mar 14 09:26:53 UTC 2008</prop>
							</props>
							<contentelements>
								<contentelement filename="doc1.pdf">Report.pdf</contentelement>
							</contentelements>
						</dsobject>
					</renditions>
				</dsobject>
			</versions>
		</dsobject>
	</export>`, true)

	r, ok := store.Get("Document-1")
	require.True(t, ok)
	assert.True(t, r.Detailed)
	assert.Equal(t, "Quarterly Report", r.Title)
	assert.Equal(t, "upload.pdf", r.OriginalFileName)
	assert.Equal(t, "doc1.pdf", r.ContentFilename)
	assert.Equal(t, int64(2048), r.Size)
	assert.Equal(t, time.March, r.CreateDate.Month())
}

func TestExtract_DocumentTitleFallsBackToContentLabel(t *testing.T) {
	// No title property: the content element's own label becomes the title.
	store := extractOne(t, `<export>
		<dsobject classname="Document" handle="Document-1">
			<props>
				<prop name="original_file_name">upload.pdf</prop>
			</props>
			<acls/>
			<destinationlinks/>
			<versions>
				<dsobject handle="Version-1">
					<renditions>
						<dsobject>
							<props><prop name="size">1</prop></props>
							<contentelements>
								<contentelement filename="doc1.pdf">Report.pdf</contentelement>
							</contentelements>
						</dsobject>
					</renditions>
				</dsobject>
			</versions>
		</dsobject>
	</export>`, true)

	r, _ := store.Get("Document-1")
	assert.Equal(t, "Report.pdf", r.Title)
}

func TestExtract_PreferredVersionSelection(t *testing.T) {
	store := extractOne(t, `<export>
		<dsobject classname="Document" handle="Document-1">
			<props><prop name="title">T</prop></props>
			<acls/>
			<destinationlinks><preferredVersion>Version-2</preferredVersion></destinationlinks>
			<versions>
				<dsobject handle="Version-1">
					<renditions><dsobject>
						<props><prop name="size">1</prop></props>
						<contentelements><contentelement filename="old.pdf">old</contentelement></contentelements>
					</dsobject></renditions>
				</dsobject>
				<dsobject handle="Version-2">
					<renditions><dsobject>
						<props><prop name="size">2</prop></props>
						<contentelements><contentelement filename="new.pdf">new</contentelement></contentelements>
					</dsobject></renditions>
				</dsobject>
			</versions>
		</dsobject>
	</export>`, true)

	r, _ := store.Get("Document-1")
	assert.Equal(t, "new.pdf", r.ContentFilename)
	assert.Equal(t, int64(2), r.Size)
}

func TestExtract_DocumentIntegrityErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no versions", `<props><prop name="title">T</prop></props><acls/><destinationlinks/>`},
		{"no preferred version", `<props><prop name="title">T</prop></props><acls/><destinationlinks/>
			<versions>
				<dsobject handle="Version-1"><renditions><dsobject><props/></dsobject></renditions></dsobject>
				<dsobject handle="Version-2"><renditions><dsobject><props/></dsobject></renditions></dsobject>
			</versions>`},
		{"dangling preferred version", `<props><prop name="title">T</prop></props><acls/>
			<destinationlinks><preferredVersion>Version-9</preferredVersion></destinationlinks>
			<versions>
				<dsobject handle="Version-1"><renditions><dsobject><props/></dsobject></renditions></dsobject>
				<dsobject handle="Version-2"><renditions><dsobject><props/></dsobject></renditions></dsobject>
			</versions>`},
		{"no rendition", `<props><prop name="title">T</prop></props><acls/><destinationlinks/>
			<versions><dsobject handle="Version-1"><renditions/></dsobject></versions>`},
		{"too many renditions", `<props><prop name="title">T</prop></props><acls/><destinationlinks/>
			<versions><dsobject handle="Version-1"><renditions>
				<dsobject><props/></dsobject>
				<dsobject><props/></dsobject>
			</renditions></dsobject></versions>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := record.NewStore()
			err := Extract([]byte(`<export><dsobject classname="Document" handle="Document-1">`+tc.body+`</dsobject></export>`),
				testOptions(true), store)
			var ie *IntegrityError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, "Document-1", ie.Handle)
		})
	}
}

func TestExtract_EmptyURLIsDropped(t *testing.T) {
	store := extractOne(t, `<export>
		<dsobject classname="URL" handle="URL-1">
			<props><prop name="title">Dead link</prop></props>
			<acls/>
			<destinationlinks/>
		</dsobject>
		<dsobject classname="URL" handle="URL-2">
			<props>
				<prop name="title">Homepage</prop>
				<prop name="url">https://example.org</prop>
			</props>
			<acls/>
			<destinationlinks/>
		</dsobject>
	</export>`, true)

	_, ok := store.Get("URL-1")
	assert.False(t, ok, "URL record without a url must be dropped entirely")

	r, ok := store.Get("URL-2")
	require.True(t, ok)
	assert.Equal(t, "https://example.org", r.URL)
}

func TestExtract_UserRecord(t *testing.T) {
	store := extractOne(t, `<export>
		<dsobject classname="User" handle="User-3">
			<props><prop name="username">alice</prop></props>
		</dsobject>
	</export>`, false)

	r, ok := store.Get("User-3")
	require.True(t, ok)
	assert.Equal(t, "alice", r.Username)
}

func TestExtract_UserWithoutUsernameIsFatal(t *testing.T) {
	store := record.NewStore()
	err := Extract([]byte(`<export>
		<dsobject classname="User" handle="User-3">
			<props><prop name="mail">a@example.org</prop></props>
		</dsobject>
	</export>`), testOptions(false), store)
	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
}

func TestExtract_IgnorableKindsAreStubs(t *testing.T) {
	store := extractOne(t, `<export>
		<dsobject classname="Calendar" handle="Calendar-5"/>
	</export>`, false)

	r, ok := store.Get("Calendar-5")
	require.True(t, ok)
	assert.True(t, r.Ignored)
}

func TestExtract_UnknownKindIsFatal(t *testing.T) {
	store := record.NewStore()
	err := Extract([]byte(`<export>
		<dsobject classname="Hologram" handle="Hologram-1"/>
	</export>`), testOptions(false), store)
	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Contains(t, ie.Reason, "Hologram")
}

func TestExtract_ObjectWithoutClassNameIsSkipped(t *testing.T) {
	store := extractOne(t, `<export>
		<banner>export of 2008-03-14</banner>
		<dsobject classname="Collection" handle="Collection-1">
			<props><prop name="title">X</prop></props>
		</dsobject>
	</export>`, false)

	assert.Equal(t, 1, store.Len())
}
