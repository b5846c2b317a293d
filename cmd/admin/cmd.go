package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"bytecopied/backend/internal/dto"
	"bytecopied/backend/internal/model"
	"bytecopied/backend/internal/service"
)

var errHelp = errors.New("help provided")

// cliPrincipal 运维命令以管理员身份调用服务层
var cliPrincipal = service.Principal{UserID: "admin-cli", Role: model.RoleAdmin, Name: "admin-cli"}

const listPageSize = 100

type commandLine struct {
	userSvc service.UserService
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  set-admin -email EMAIL      - 将用户提升为管理员")
	fmt.Fprintln(cli.out, "  set-student -email EMAIL    - 将用户降级为学生")
	fmt.Fprintln(cli.out, "  list-users                  - 列出全部用户")
	fmt.Fprintln(cli.out, "  delete-user -email EMAIL    - 删除用户")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "set-admin", "set-student":
		role := model.RoleAdmin
		if args[1] == "set-student" {
			role = model.RoleStudent
		}
		email, err := cli.parseEmail(args[1], args[2:])
		if err != nil {
			return err
		}
		return cli.setRole(ctx, email, role)
	case "delete-user":
		email, err := cli.parseEmail(args[1], args[2:])
		if err != nil {
			return err
		}
		return cli.deleteUser(ctx, email)
	case "list-users":
		return cli.listUsers(ctx)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) parseEmail(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	email := fs.String("email", "", "用户邮箱")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if *email == "" {
		fs.Usage()
		return "", errHelp
	}
	return *email, nil
}

func (cli *commandLine) setRole(ctx context.Context, email, role string) error {
	user, err := cli.userSvc.SetRole(ctx, email, role)
	if err != nil {
		return fmt.Errorf("设置角色失败: %w", err)
	}
	fmt.Fprintf(cli.out, "%s (%s) 已设置为 %s\n", user.Name, user.Email, user.Role)
	return nil
}

func (cli *commandLine) deleteUser(ctx context.Context, email string) error {
	if err := cli.userSvc.DeleteByEmail(ctx, email); err != nil {
		return fmt.Errorf("删除用户失败: %w", err)
	}
	fmt.Fprintf(cli.out, "用户 %s 已删除\n", email)
	return nil
}

func (cli *commandLine) listUsers(ctx context.Context) error {
	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tEMAIL\tENROLLMENT\tROLE\tCREATED_AT")

	var fetched int
	for page := 1; ; page++ {
		req := &dto.UserListRequest{PaginationRequest: dto.PaginationRequest{Page: page, PageSize: listPageSize}}
		users, total, err := cli.userSvc.List(ctx, cliPrincipal, req)
		if err != nil {
			return fmt.Errorf("查询用户失败: %w", err)
		}
		for _, u := range users {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.Name, u.Email, u.EnrollmentNumber, u.Role, u.CreatedAt)
		}
		fetched += len(users)
		if len(users) == 0 || int64(fetched) >= total {
			break
		}
	}

	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "共 %d 个用户\n", fetched)
	return nil
}
