package cmd

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Daskott/rolodex/colors"
	"github.com/Daskott/rolodex/dashboard"
	"github.com/Daskott/rolodex/form"
	"github.com/Daskott/rolodex/schema"
	"github.com/Daskott/rolodex/shared"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const dateLayout = "2006-01-02"

func createContactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "contacts",
		Aliases: []string{"c"},
		Short:   "Manage your contacts",
	}

	cmd.AddCommand(
		createListContactsCmd(),
		createAddContactCmd(),
		createUpdateContactCmd(),
		createDeleteContactCmd(),
		createAddMethodCmd(),
		createAddLinkCmd(),
		createAddConversationCmd(),
		createUpdateMethodCmd(),
		createUpdateLinkCmd(),
		createUpdateConversationCmd(),
	)

	return cmd
}

func createListContactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, user, err := signedInApp(cmd)
			if err != nil {
				return err
			}

			board := dashboard.New(app.data, user.ID)
			if err := board.Load(cmd.Context()); err != nil {
				return formattedError("%v", shared.Message(err))
			}

			contacts := board.Contacts()
			if len(contacts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "You have no contacts yet, add one with 'rolodex contacts add'")
				return nil
			}

			printContacts(cmd.OutOrStdout(), contacts)
			return nil
		},
	}
}

func createAddContactCmd() *cobra.Command {
	values := map[string]*string{}
	var imagePath string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a contact",
		Long: `Add a contact. With --linkedin the name, job title, about and photo
are imported from the profile; any field set with a flag wins.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, user, err := signedInApp(cmd)
			if err != nil {
				return err
			}

			contactForm := form.New(user.ID, app.data, app.data)

			if linkedIn := *values[form.FieldLinkedInURL]; linkedIn != "" {
				if _, err := contactForm.ImportFromProfileURL(cmd.Context(), linkedIn); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", warningLabel, shared.Message(err))
				}
			}

			if imagePath != "" {
				file, closeFile, err := openImage(imagePath)
				if err != nil {
					return err
				}
				defer closeFile()

				if _, err := contactForm.SelectImageFile(cmd.Context(), file); err != nil {
					return formattedError("%v", shared.Message(err))
				}
			}

			for name, value := range values {
				if cmd.Flags().Changed(flagName(name)) {
					if err := contactForm.SetField(name, *value); err != nil {
						return err
					}
				}
			}

			submission := contactForm.BuildSubmission()
			if submission.Name == nil || *submission.Name == "" {
				return formattedError("a contact needs a name, set it with --name or --linkedin")
			}

			contact, err := dashboard.New(app.data, user.ID).Add(cmd.Context(), submission)
			if err != nil {
				return formattedError("%v", shared.Message(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", colors.Green(contact.Name), colors.Faint(contact.ID))
			return nil
		},
	}

	contactFlags(cmd.Flags(), values)
	values[form.FieldLinkedInURL] = cmd.Flags().String("linkedin", "", "LinkedIn profile to import from")
	cmd.Flags().StringVar(&imagePath, "image", "", "path to a photo of the contact")

	return cmd
}

func createUpdateContactCmd() *cobra.Command {
	values := map[string]*string{}

	cmd := &cobra.Command{
		Use:   "update <contact id>",
		Short: "Update the fields of a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, user, err := signedInApp(cmd)
			if err != nil {
				return err
			}

			patch := schema.PartialContact{}
			changed := false
			for name, value := range values {
				if !cmd.Flags().Changed(flagName(name)) {
					continue
				}
				changed = true
				setPatchField(&patch, name, *value)
			}
			if !changed {
				return formattedError("nothing to update, set at least one field")
			}

			if err := dashboard.New(app.data, user.ID).Update(cmd.Context(), args[0], patch); err != nil {
				return formattedError("%v", shared.Message(err))
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Contact updated")
			return nil
		},
	}

	contactFlags(cmd.Flags(), values)
	return cmd
}

func createDeleteContactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <contact id>",
		Short: "Delete a contact with everything recorded about them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, user, err := signedInApp(cmd)
			if err != nil {
				return err
			}

			if err := dashboard.New(app.data, user.ID).Delete(cmd.Context(), args[0]); err != nil {
				return formattedError("%v", shared.Message(err))
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Contact deleted")
			return nil
		},
	}
}

func createAddMethodCmd() *cobra.Command {
	input := schema.ContactMethodInput{}

	cmd := &cobra.Command{
		Use:   "add-method <contact id>",
		Short: "Add a way to reach a contact, e.g. an email or phone number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, user, err := signedInApp(cmd)
			if err != nil {
				return err
			}

			method, err := app.data.AddContactMethod(cmd.Context(), user.ID, args[0], input)
			if err != nil {
				return formattedError("%v", shared.Message(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (%s)\n", method.Type, colors.Green(method.Value), colors.Faint(method.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&input.Type, "type", "", "e.g. email or phone")
	cmd.Flags().StringVar(&input.Value, "value", "", "the address or number")
	cmd.Flags().BoolVar(&input.IsPrimary, "primary", false, "make this the primary method for its type")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("value")

	return cmd
}

func createAddLinkCmd() *cobra.Command {
	input := schema.SocialLinkInput{}

	cmd := &cobra.Command{
		Use:   "add-link <contact id>",
		Short: "Add a social link to a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, user, err := signedInApp(cmd)
			if err != nil {
				return err
			}

			link, err := app.data.AddSocialLink(cmd.Context(), user.ID, args[0], input)
			if err != nil {
				return formattedError("%v", shared.Message(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (%s)\n", link.Platform, colors.Green(link.URL), colors.Faint(link.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&input.Platform, "platform", "", "e.g. linkedin or github")
	cmd.Flags().StringVar(&input.URL, "url", "", "link to the profile")
	cmd.MarkFlagRequired("platform")
	cmd.MarkFlagRequired("url")

	return cmd
}

func createAddConversationCmd() *cobra.Command {
	var date, summary, transcript string

	cmd := &cobra.Command{
		Use:   "add-conversation <contact id>",
		Short: "Record a conversation with a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, user, err := signedInApp(cmd)
			if err != nil {
				return err
			}

			input := schema.ConversationInput{Summary: summary, Date: time.Now().UTC()}
			if date != "" {
				if input.Date, err = time.Parse(dateLayout, date); err != nil {
					return formattedError("invalid --date, expected YYYY-MM-DD")
				}
			}
			if cmd.Flags().Changed("transcript") {
				input.Transcript = schema.String(transcript)
			}

			conversation, err := app.data.AddConversation(cmd.Context(), user.ID, args[0], input)
			if err != nil {
				return formattedError("%v", shared.Message(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recorded conversation on %s (%s)\n",
				colors.Green(conversation.Date.Format(dateLayout)), colors.Faint(conversation.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "when it happened, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&summary, "summary", "", "what you talked about")
	cmd.Flags().StringVar(&transcript, "transcript", "", "full notes or transcript")
	cmd.MarkFlagRequired("summary")

	return cmd
}

func createUpdateMethodCmd() *cobra.Command {
	var methodType, value string
	var primary bool

	cmd := &cobra.Command{
		Use:   "update-method <method id>",
		Short: "Update a contact method",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := schema.ContactMethodPatch{}
			if cmd.Flags().Changed("type") {
				patch.Type = schema.String(methodType)
			}
			if cmd.Flags().Changed("value") {
				patch.Value = schema.String(value)
			}
			if cmd.Flags().Changed("primary") {
				patch.IsPrimary = schema.Bool(primary)
			}
			return updateChild(cmd, args[0], patch, "Contact method updated")
		},
	}

	cmd.Flags().StringVar(&methodType, "type", "", "e.g. email or phone")
	cmd.Flags().StringVar(&value, "value", "", "the address or number")
	cmd.Flags().BoolVar(&primary, "primary", false, "make this the primary method for its type")

	return cmd
}

func createUpdateLinkCmd() *cobra.Command {
	var platform, url string

	cmd := &cobra.Command{
		Use:   "update-link <link id>",
		Short: "Update a social link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := schema.SocialLinkPatch{}
			if cmd.Flags().Changed("platform") {
				patch.Platform = schema.String(platform)
			}
			if cmd.Flags().Changed("url") {
				patch.URL = schema.String(url)
			}
			return updateChild(cmd, args[0], patch, "Social link updated")
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "e.g. linkedin or github")
	cmd.Flags().StringVar(&url, "url", "", "link to the profile")

	return cmd
}

func createUpdateConversationCmd() *cobra.Command {
	var date, summary, transcript string

	cmd := &cobra.Command{
		Use:   "update-conversation <conversation id>",
		Short: "Update a recorded conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := schema.ConversationPatch{}
			if cmd.Flags().Changed("date") {
				parsed, err := time.Parse(dateLayout, date)
				if err != nil {
					return formattedError("invalid --date, expected YYYY-MM-DD")
				}
				patch.Date = &parsed
			}
			if cmd.Flags().Changed("summary") {
				patch.Summary = schema.String(summary)
			}
			if cmd.Flags().Changed("transcript") {
				patch.Transcript = schema.String(transcript)
			}
			return updateChild(cmd, args[0], patch, "Conversation updated")
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "when it happened, YYYY-MM-DD")
	cmd.Flags().StringVar(&summary, "summary", "", "what you talked about")
	cmd.Flags().StringVar(&transcript, "transcript", "", "full notes or transcript")

	return cmd
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func signedInApp(cmd *cobra.Command) (*app, *schema.User, error) {
	app, err := newApp(cmd.Context())
	if err != nil {
		return nil, nil, err
	}

	user, err := app.requireUser()
	if err != nil {
		return nil, nil, err
	}
	return app, user, nil
}

func updateChild(cmd *cobra.Command, id string, patch schema.Patch, done string) error {
	if len(patch.Row()) == 0 {
		return formattedError("nothing to update, set at least one field")
	}

	app, user, err := signedInApp(cmd)
	if err != nil {
		return err
	}

	if err := app.data.Update(cmd.Context(), user.ID, id, patch); err != nil {
		return formattedError("%v", shared.Message(err))
	}

	fmt.Fprintln(cmd.OutOrStdout(), done)
	return nil
}

// contactFlags registers one string flag per editable contact field.
func contactFlags(flags *pflag.FlagSet, values map[string]*string) {
	values[form.FieldName] = flags.String("name", "", "full name")
	values[form.FieldJobTitle] = flags.String("job-title", "", "job title")
	values[form.FieldAbout] = flags.String("about", "", "notes about the contact")
	values[form.FieldWebsite] = flags.String("website", "", "personal website")
	values[form.FieldCalendarLink] = flags.String("calendar-link", "", "link to book time with them")
	values[form.FieldCategory] = flags.String("category", "", "e.g. friend, work")
	values[form.FieldTags] = flags.String("tags", "", "comma separated tags")
	values[form.FieldImageURL] = flags.String("image-url", "", "link to a photo of the contact")
}

func flagName(field string) string {
	switch field {
	case form.FieldJobTitle:
		return "job-title"
	case form.FieldCalendarLink:
		return "calendar-link"
	case form.FieldImageURL:
		return "image-url"
	case form.FieldLinkedInURL:
		return "linkedin"
	default:
		return field
	}
}

// setPatchField writes a flag value into patch. An empty value clears the field.
func setPatchField(patch *schema.PartialContact, field, value string) {
	switch field {
	case form.FieldName:
		patch.Name = schema.String(strings.TrimSpace(value))
	case form.FieldJobTitle:
		patch.JobTitle = schema.String(value)
	case form.FieldAbout:
		patch.About = schema.String(value)
	case form.FieldWebsite:
		patch.Website = schema.String(value)
	case form.FieldCalendarLink:
		patch.CalendarLink = schema.String(value)
	case form.FieldCategory:
		patch.Category = schema.String(value)
	case form.FieldImageURL:
		patch.ImageURL = schema.String(value)
	case form.FieldTags:
		patch.Tags = form.ParseTags(value)
	}
}

func openImage(path string) (shared.File, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return shared.File{}, nil, formattedError("unable to open image: %v", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return shared.File{}, nil, formattedError("unable to read image: %v", err)
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		head := make([]byte, 512)
		n, _ := io.ReadFull(f, head)
		contentType = http.DetectContentType(head[:n])
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return shared.File{}, nil, formattedError("unable to read image: %v", err)
		}
	}

	file := shared.File{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
		Content:     f,
	}
	return file, func() { f.Close() }, nil
}

func printContacts(out io.Writer, contacts []schema.Contact) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tJOB TITLE\tCATEGORY\tTAGS")
	for _, contact := range contacts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			contact.ID,
			contact.Name,
			valueOr(contact.JobTitle, "-"),
			valueOr(contact.Category, "-"),
			strings.Join(contact.Tags, ", "),
		)
	}
	w.Flush()
}

func valueOr(value *string, fallback string) string {
	if value == nil || *value == "" {
		return fallback
	}
	return *value
}
